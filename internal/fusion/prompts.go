package fusion

import "fmt"

// LocalPrompt wraps a question for the small local model, which does better
// with a short directive than with a bare question.
func LocalPrompt(question string) string {
	return "Answer concisely: " + question
}

// BuildMergePrompt asks the merge model to combine two answers into one.
func BuildMergePrompt(t TaskType, question, a, b string) string {
	switch t {
	case TaskSummary:
		return summaryMergePrompt(question, a, b)
	case TaskTopicGeneration:
		return topicListMergePrompt(question, a, b)
	case TaskSingleTopic:
		return singleTopicMergePrompt(question, a, b)
	default:
		return answerMergePrompt(question, a, b)
	}
}

func summaryMergePrompt(question, a, b string) string {
	return fmt.Sprintf(`Using the two meeting summaries below, write one final summary that is more complete and accurate.

Summary request: %s

Summary A: %s

Summary B: %s

Merge every important point from both summaries so that nothing is lost, and order the points logically. Output only the final summary:`, question, a, b)
}

func topicListMergePrompt(question, a, b string) string {
	return fmt.Sprintf(`Using the two sets of discussion topic suggestions below, write one final topic list that is more complete and varied.

Request: %s

Suggestions A: %s

Suggestions B: %s

Merge both sets, drop duplicates, keep the topics diverse and sort them by importance. Output only the final topic list:`, question, a, b)
}

func singleTopicMergePrompt(question, a, b string) string {
	return fmt.Sprintf(`Using the two topic suggestions below, write one better final topic.

Topic request: %s

Suggestion A: %s

Suggestion B: %s

Combine the strengths of both suggestions into a single precise and engaging topic. Output only the final topic:`, question, a, b)
}

func answerMergePrompt(question, a, b string) string {
	return fmt.Sprintf(`Using the two AI answers below, write one better final answer.

Question: %s

Answer A: %s

Answer B: %s

Combine the strengths of both answers into one accurate and helpful answer. Output only the final answer:`, question, a, b)
}
