package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

func kindOf(t *testing.T, err error) ErrorKind {
	t.Helper()
	var classified *Error
	require.ErrorAs(t, err, &classified)
	return classified.Kind
}

func TestClassifyError(t *testing.T) {
	require.NoError(t, ClassifyError(nil))

	require.Equal(t, KindAuth, kindOf(t, ClassifyError(&openai.APIError{HTTPStatusCode: 401})))
	require.Equal(t, KindAuth, kindOf(t, ClassifyError(&openai.APIError{HTTPStatusCode: 403})))
	require.Equal(t, KindRateLimit, kindOf(t, ClassifyError(&openai.APIError{HTTPStatusCode: 429})))
	require.Equal(t, KindProvider, kindOf(t, ClassifyError(&openai.APIError{HTTPStatusCode: 500})))
	require.Equal(t, KindTimeout, kindOf(t, ClassifyError(context.DeadlineExceeded)))
	require.Equal(t, KindNetwork, kindOf(t, ClassifyError(errors.New("connection refused"))))
}

func TestClassifyError_WrappedAndStable(t *testing.T) {
	wrapped := fmt.Errorf("call failed: %w", &openai.APIError{HTTPStatusCode: 429})
	require.Equal(t, KindRateLimit, kindOf(t, ClassifyError(wrapped)))

	// Classifying twice does not re-wrap.
	once := ClassifyError(&openai.APIError{HTTPStatusCode: 401})
	require.Equal(t, once, ClassifyError(once))
}

func TestUserMessage(t *testing.T) {
	plain := UserMessage("hello", "")
	require.Equal(t, "hello", plain.Content)
	require.Empty(t, plain.MultiContent)

	multi := UserMessage("what is this", "data:image/png;base64,AAA")
	require.Empty(t, multi.Content)
	require.Len(t, multi.MultiContent, 2)
	require.Equal(t, openai.ChatMessagePartTypeImageURL, multi.MultiContent[1].Type)
}
