package fusion

import "strings"

// TaskType selects the merge prompt for a request.
type TaskType string

const (
	TaskChat            TaskType = "chat"
	TaskSummary         TaskType = "summary"
	TaskTopicGeneration TaskType = "topic_generation"
	TaskSingleTopic     TaskType = "single_topic"
	TaskGeneral         TaskType = "general"
)

// ParseTaskType maps a wire value to a TaskType. Unknown and empty values
// are general.
func ParseTaskType(s string) TaskType {
	switch t := TaskType(strings.ToLower(strings.TrimSpace(s))); t {
	case TaskChat, TaskSummary, TaskTopicGeneration, TaskSingleTopic:
		return t
	default:
		return TaskGeneral
	}
}

// Request is one question for the engine. Target is the remote workspace;
// empty means the remote default.
type Request struct {
	Text     string
	Target   string
	TaskType TaskType
}
