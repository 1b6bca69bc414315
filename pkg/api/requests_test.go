package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	req := GenerationRequest{Prompt: "  hello  "}
	req.Normalize()

	assert.Equal(t, "hello", req.Prompt)
	assert.Equal(t, TaskGeneral, req.TaskType)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
	if assert.NotNil(t, req.Temperature) {
		assert.Equal(t, DefaultTemperature, *req.Temperature)
	}
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	temp := 1.5
	req := GenerationRequest{
		Prompt:      "hello",
		TaskType:    TaskReasoning,
		MaxTokens:   200,
		Temperature: &temp,
	}
	req.Normalize()

	assert.Equal(t, TaskReasoning, req.TaskType)
	assert.Equal(t, 200, req.MaxTokens)
	assert.Equal(t, 1.5, *req.Temperature)
}

func TestValidate(t *testing.T) {
	bad := -0.5
	hot := 2.5

	tests := []struct {
		name    string
		req     GenerationRequest
		wantErr string
	}{
		{"valid", GenerationRequest{Prompt: "hi"}, ""},
		{"empty prompt", GenerationRequest{Prompt: "   "}, "prompt must not be empty"},
		{"prompt too long", GenerationRequest{Prompt: strings.Repeat("a", MaxPromptLength+1)}, "prompt exceeds"},
		{"bad task type", GenerationRequest{Prompt: "hi", TaskType: "poetry"}, "unknown task_type"},
		{"max tokens over limit", GenerationRequest{Prompt: "hi", MaxTokens: MaxTokensLimit + 1}, "max_tokens"},
		{"negative max tokens", GenerationRequest{Prompt: "hi", MaxTokens: -1}, "max_tokens"},
		{"temperature too low", GenerationRequest{Prompt: "hi", Temperature: &bad}, "temperature"},
		{"temperature too high", GenerationRequest{Prompt: "hi", Temperature: &hot}, "temperature"},
		{"negative timeout", GenerationRequest{Prompt: "hi", TimeoutSeconds: -1}, "timeout_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
