package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	inputs := map[string]string{
		"plain":              `{"summary":"요약"}`,
		"fenced with tag":    "```json\n{\"summary\":\"요약\"}\n```",
		"fenced without tag": "```\n{\"summary\":\"요약\"}\n```",
		"fenced single line": "```json{\"summary\":\"요약\"}```",
		"brace on first":     "```{\n\"summary\":\"요약\"}\n```",
		"surrounding space":  "  \n```json\n{\"summary\":\"요약\"}\n```  \n",
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			var out summaryReply
			require.NoError(t, DecodeJSON(input, &out))
			assert.Equal(t, "요약", out.Summary)
		})
	}
}

func TestDecodeJSONErrors(t *testing.T) {
	var out summaryReply
	assert.Error(t, DecodeJSON("", &out))
	assert.Error(t, DecodeJSON("```json\n```", &out))
	assert.Error(t, DecodeJSON(`{"summary": "unterminated`, &out))
	assert.Error(t, DecodeJSON("Sure! Here is the JSON you asked for.", &out))
}
