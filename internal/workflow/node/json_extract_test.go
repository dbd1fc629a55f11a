package node

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	wfmodel "nexus-marketing-api/internal/workflow/model"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"bare array", `[1, 2]`, `[1, 2]`},
		{"leading prose", `Sure, here you go: {"a": 1}`, `{"a": 1}`},
		{"trailing prose", `{"a": 1} hope that helps!`, `{"a": 1}`},
		{"markdown fences", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"nested objects", `{"a": {"b": [1, 2]}}`, `{"a": {"b": [1, 2]}}`},
		{"whitespace only", "   \n\t ", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSONObject(tt.in))
		})
	}
}

func TestExtractJSONObjectProseFallsThrough(t *testing.T) {
	in := "Sorry, I cannot help with that."
	assert.Equal(t, in, ExtractJSONObject(in))
}

func TestBuildHistoryBlock(t *testing.T) {
	assert.Equal(t, "(no prior messages)", BuildHistoryBlock(nil))
	assert.Equal(t, "(no prior messages)", BuildHistoryBlock([]wfmodel.HistoryTurn{{Role: "user", Content: "   "}}))

	got := BuildHistoryBlock([]wfmodel.HistoryTurn{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello!"},
		{Role: "", Content: "again"},
	})
	assert.Equal(t, "user: hi\nassistant: hello!\nuser: again", got)
}

func TestBuildHistoryBlockTruncatesLongTurns(t *testing.T) {
	long := strings.Repeat("ab", 1000)
	got := BuildHistoryBlock([]wfmodel.HistoryTurn{{Role: "user", Content: long}})
	assert.Equal(t, "user: "+long[:600], got)
}

func TestTruncateByRunes(t *testing.T) {
	assert.Equal(t, "", TruncateByRunes("hello", 0))
	assert.Equal(t, "hello", TruncateByRunes("hello", 10))
	assert.Equal(t, "he", TruncateByRunes("hello", 2))
	// 多字节字符按 rune 截断，不产生半个字符
	assert.Equal(t, "مرحب", TruncateByRunes("مرحبا بالعالم", 4))
}

func TestIsResponseFormatUnsupportedError(t *testing.T) {
	assert.False(t, IsResponseFormatUnsupportedError(nil))
	assert.False(t, IsResponseFormatUnsupportedError(errors.New("connection refused")))
	assert.True(t, IsResponseFormatUnsupportedError(errors.New("unknown parameter: response_format")))
	assert.True(t, IsResponseFormatUnsupportedError(errors.New("json_schema is not supported by this model")))
	assert.True(t, IsResponseFormatUnsupportedError(errors.New("Invalid response payload")))
}
