package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	cases := []struct {
		name string
		in   Result
		want string
	}{
		{"text", Text{Content: "hi"}, "hi"},
		{"blocked", Blocked{Reason: "SAFETY"}, "Error: The response was blocked by safety filters (Reason: SAFETY) or could not be generated."},
		{"blocked unknown", Blocked{}, "Error: The response was blocked by safety filters (Reason: Unknown) or could not be generated."},
		{"rate limited", APIError{Kind: ErrorRateLimited, Detail: "429"}, "Error: The AI is currently busy due to rate limits or quota issues. Please try again later."},
		{"provider", APIError{Kind: ErrorProvider, Detail: "bad key"}, "Error: Could not communicate with the AI API. Details: bad key"},
		{"unexpected", APIError{Kind: ErrorUnexpected, Detail: "eof"}, "An unexpected error occurred: eof"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, UserMessage(tc.in), tc.name)
	}
	assert.NotEmpty(t, UserMessage(nil))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "text", Kind(Text{}))
	assert.Equal(t, "blocked", Kind(Blocked{}))
	assert.Equal(t, "error:rate_limited", Kind(APIError{Kind: ErrorRateLimited}))
	assert.Equal(t, "error:provider", Kind(APIError{Kind: ErrorProvider}))
	assert.Equal(t, "error:unexpected", Kind(APIError{}))
	assert.Equal(t, "none", Kind(nil))
}

func TestExplainConfigs(t *testing.T) {
	assert.Equal(t, int32(300), ExplainErrorConfig.MaxOutputTokens)
	assert.Equal(t, int32(450), ExplainOutputConfig.MaxOutputTokens)
	assert.Nil(t, ExplainErrorConfig.TopP)
}
