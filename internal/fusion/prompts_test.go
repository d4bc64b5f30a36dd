package fusion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTaskType(t *testing.T) {
	tests := map[string]TaskType{
		"chat":               TaskChat,
		"summary":            TaskSummary,
		" Topic_Generation ": TaskTopicGeneration,
		"single_topic":       TaskSingleTopic,
		"general":            TaskGeneral,
		"":                   TaskGeneral,
		"poetry":             TaskGeneral,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseTaskType(in), "input %q", in)
	}
}

func TestBuildMergePrompt(t *testing.T) {
	tests := []struct {
		task   TaskType
		marker string
		ending string
	}{
		{TaskSummary, "Summary A: first", "Output only the final summary:"},
		{TaskTopicGeneration, "Suggestions A: first", "Output only the final topic list:"},
		{TaskSingleTopic, "Suggestion A: first", "Output only the final topic:"},
		{TaskChat, "Answer A: first", "Output only the final answer:"},
		{TaskGeneral, "Answer A: first", "Output only the final answer:"},
	}
	for _, tt := range tests {
		t.Run(string(tt.task), func(t *testing.T) {
			p := BuildMergePrompt(tt.task, "the question", "first", "second")

			assert.Contains(t, p, "the question")
			assert.Contains(t, p, tt.marker)
			assert.Contains(t, p, "second")
			assert.True(t, strings.HasSuffix(p, tt.ending), "prompt should end with %q", tt.ending)
		})
	}
}

func TestLocalPrompt(t *testing.T) {
	assert.Equal(t, "Answer concisely: what is Go?", LocalPrompt("what is Go?"))
}
