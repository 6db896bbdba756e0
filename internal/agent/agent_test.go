package agent

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/glimpsehq/glimpse/internal/config"
	"github.com/glimpsehq/glimpse/internal/db"
	"github.com/glimpsehq/glimpse/internal/store"
)

type mockLLM struct {
	responses []openai.ChatCompletionResponse
	requests  []openai.ChatCompletionRequest
	err       error
}

func (m *mockLLM) CreateChatCompletion(ctx context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.requests = append(m.requests, r)
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	if len(m.responses) == 0 {
		panic("mockLLM: no more responses configured")
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func answer(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}},
	}
}

func newTestAgent(t *testing.T, mock *mockLLM) (*Agent, *store.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	database, err := db.Open(filepath.Join(t.TempDir(), "history.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	st := store.New(database.Handle(), log)
	return New(mock, config.LLMConfig{Model: "gpt-4o"}, st, log), st
}

func TestAsk_AnswersAndPersistsExchange(t *testing.T) {
	mock := &mockLLM{responses: []openai.ChatCompletionResponse{answer("A stack trace.")}}
	ag, st := newTestAgent(t, mock)

	result, err := ag.Ask(context.Background(), AskRequest{
		Prompt:     "What is this?",
		Screenshot: "data:image/png;base64,AAA",
	})
	require.NoError(t, err)
	require.Equal(t, "A stack trace.", result.Answer)
	require.NotEmpty(t, result.ConversationID)

	full, err := st.GetConversationWithMessages(context.Background(), result.ConversationID)
	require.NoError(t, err)
	require.Equal(t, "data:image/png;base64,AAA", full.Screenshot)
	require.Len(t, full.Messages, 2)
	require.Equal(t, store.RoleUser, full.Messages[0].Role)
	require.Equal(t, "What is this?", full.Messages[0].Content)
	require.Equal(t, store.RoleAssistant, full.Messages[1].Role)
	require.Equal(t, "A stack trace.", full.Messages[1].Content)
	require.False(t, full.Messages[1].Error)
}

// The machine starts in ReadyToCallLLM, so the entry action only runs when
// the start trigger re-enters the state; a single ask must produce exactly
// one completion call and land in a terminal state with the answer.
func TestAsk_RunsCompletionExactlyOnce(t *testing.T) {
	mock := &mockLLM{responses: []openai.ChatCompletionResponse{answer("ok")}}
	ag, _ := newTestAgent(t, mock)

	result, err := ag.Ask(context.Background(), AskRequest{Prompt: "q"})
	require.NoError(t, err)
	require.Equal(t, "ok", result.Answer)
	require.Len(t, mock.requests, 1)
}

func TestAsk_FollowUpReplaysHistory(t *testing.T) {
	mock := &mockLLM{responses: []openai.ChatCompletionResponse{answer("first"), answer("second")}}
	ag, _ := newTestAgent(t, mock)
	ctx := context.Background()

	first, err := ag.Ask(ctx, AskRequest{Prompt: "What is this?"})
	require.NoError(t, err)

	second, err := ag.Ask(ctx, AskRequest{Prompt: "Tell me more", ConversationID: first.ConversationID})
	require.NoError(t, err)
	require.Equal(t, first.ConversationID, second.ConversationID)

	// system + prior user/assistant turns + new prompt
	require.Len(t, mock.requests, 2)
	followUp := mock.requests[1].Messages
	require.Len(t, followUp, 4)
	require.Equal(t, openai.ChatMessageRoleSystem, followUp[0].Role)
	require.Equal(t, "What is this?", followUp[1].Content)
	require.Equal(t, "first", followUp[2].Content)
}

func TestAsk_UnknownConversation(t *testing.T) {
	mock := &mockLLM{responses: []openai.ChatCompletionResponse{answer("unused")}}
	ag, _ := newTestAgent(t, mock)

	_, err := ag.Ask(context.Background(), AskRequest{Prompt: "hi", ConversationID: "missing"})
	require.Error(t, err)
	require.Empty(t, mock.requests)
}

func TestAsk_LLMErrorIsRecorded(t *testing.T) {
	mock := &mockLLM{err: context.DeadlineExceeded}
	ag, st := newTestAgent(t, mock)
	ctx := context.Background()

	conv, err := st.CreateConversation(ctx, "")
	require.NoError(t, err)

	_, err = ag.Ask(ctx, AskRequest{Prompt: "hi", ConversationID: conv.ID})
	require.Error(t, err)

	full, err := st.GetConversationWithMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, full.Messages, 2)
	require.Equal(t, store.RoleAssistant, full.Messages[1].Role)
	require.True(t, full.Messages[1].Error)
}

func TestAsk_EmptyPrompt(t *testing.T) {
	ag, _ := newTestAgent(t, &mockLLM{})
	_, err := ag.Ask(context.Background(), AskRequest{})
	require.Error(t, err)
}

func TestAsk_WithoutPersistence(t *testing.T) {
	mock := &mockLLM{responses: []openai.ChatCompletionResponse{answer("still works")}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ag := New(mock, config.LLMConfig{Model: "gpt-4o"}, nil, log)

	result, err := ag.Ask(context.Background(), AskRequest{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "still works", result.Answer)
	require.Empty(t, result.ConversationID)
}

func TestAsk_ScreenshotBecomesImagePart(t *testing.T) {
	mock := &mockLLM{responses: []openai.ChatCompletionResponse{answer("ok")}}
	ag, _ := newTestAgent(t, mock)

	_, err := ag.Ask(context.Background(), AskRequest{Prompt: "read this", Screenshot: "data:image/png;base64,AAA"})
	require.NoError(t, err)

	user := mock.requests[0].Messages[len(mock.requests[0].Messages)-1]
	require.Len(t, user.MultiContent, 2)
	require.Equal(t, openai.ChatMessagePartTypeText, user.MultiContent[0].Type)
	require.Equal(t, openai.ChatMessagePartTypeImageURL, user.MultiContent[1].Type)
	require.Equal(t, "data:image/png;base64,AAA", user.MultiContent[1].ImageURL.URL)
}
