// Package agent drives one ask: prompt (plus optional screenshot) to the
// completion service, then the exchange into the conversation store.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/qmuntal/stateless"
	"github.com/sashabaranov/go-openai"

	"github.com/glimpsehq/glimpse/internal/config"
	"github.com/glimpsehq/glimpse/internal/llm"
	"github.com/glimpsehq/glimpse/internal/store"
)

// FSM states for a single ask.
type FSMState stateless.State

var (
	StateReadyToCallLLM     FSMState = "ReadyToCallLLM"
	StatePersistingExchange FSMState = "PersistingExchange"
	StateDone               FSMState = "Done"  // Terminal: answer produced
	StateError              FSMState = "Error" // Terminal: completion failed
)

// FSM triggers.
type FSMTrigger stateless.Trigger

var (
	TriggerAsk               FSMTrigger = "Ask"
	TriggerLLMResponded      FSMTrigger = "LLMResponded"
	TriggerExchangePersisted FSMTrigger = "ExchangePersisted"
	TriggerErrorOccurred     FSMTrigger = "ErrorOccurred"
)

const defaultSystemPrompt = "You are a helpful assistant. The user shares a screenshot from their screen and asks about it. Answer accurately and concisely."

// History is the slice of the store the agent needs; nil means the app is
// running without persistence and answers are simply not saved.
type History interface {
	CreateConversation(ctx context.Context, screenshot string) (*store.Conversation, error)
	GetConversationWithMessages(ctx context.Context, id string) (*store.ConversationWithMessages, error)
	SaveMessage(ctx context.Context, conversationID string, role store.Role, content string, isError bool) (*store.Message, error)
}

// Agent is constructed once at startup and shared by all handlers.
type Agent struct {
	llmClient llm.Client
	cfg       config.LLMConfig
	history   History
	logger    *slog.Logger
}

func New(llmClient llm.Client, cfg config.LLMConfig, history History, logger *slog.Logger) *Agent {
	return &Agent{llmClient: llmClient, cfg: cfg, history: history, logger: logger}
}

// AskRequest is one question. An empty ConversationID starts a new
// conversation; otherwise prior messages are replayed as context.
type AskRequest struct {
	Prompt         string
	Screenshot     string // data URL, optional
	ConversationID string
}

// AskResult carries the answer and the conversation it was recorded in.
// ConversationID is empty when persistence is unavailable.
type AskResult struct {
	Answer         string
	ConversationID string
}

// Ask runs the completion and records the exchange. A persistence failure
// never loses the answer: the result is returned and the failure only logged.
func (a *Agent) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	if req.Prompt == "" {
		return nil, errors.New("prompt is required")
	}

	type fsmContext struct {
		messages  []openai.ChatCompletionMessage
		answer    string
		lastError error
	}
	fsmCtx := &fsmContext{}

	systemPrompt := a.cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	fsmCtx.messages = append(fsmCtx.messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleSystem, Content: systemPrompt,
	})

	conversationID := req.ConversationID
	screenshot := req.Screenshot
	if conversationID != "" && a.history != nil {
		prior, err := a.history.GetConversationWithMessages(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("unknown conversation %q: %w", conversationID, err)
		}
		if screenshot == "" {
			screenshot = prior.Screenshot
		}
		for _, m := range prior.Messages {
			if m.Error {
				continue
			}
			fsmCtx.messages = append(fsmCtx.messages, openai.ChatCompletionMessage{
				Role: string(m.Role), Content: m.Content,
			})
		}
	}
	fsmCtx.messages = append(fsmCtx.messages, llm.UserMessage(req.Prompt, screenshot))

	fsm := stateless.NewStateMachine(StateReadyToCallLLM)

	// Re-entry on TriggerAsk is what runs the initial OnEntry: the machine
	// starts in this state and entry actions only fire on a transition.
	fsm.Configure(StateReadyToCallLLM).
		PermitReentry(TriggerAsk).
		OnEntry(func(ctx context.Context, args ...any) error {
			resp, err := a.llmClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:    a.cfg.Model,
				Messages: fsmCtx.messages,
			})
			if err != nil {
				fsmCtx.lastError = llm.ClassifyError(err)
				a.logger.Error("completion call failed", "error", fsmCtx.lastError)
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}
			if len(resp.Choices) == 0 {
				fsmCtx.lastError = llm.ClassifyError(errors.New("completion returned no choices"))
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}
			fsmCtx.answer = resp.Choices[0].Message.Content
			return fsm.FireCtx(ctx, TriggerLLMResponded)
		}).
		Permit(TriggerLLMResponded, StatePersistingExchange).
		Permit(TriggerErrorOccurred, StateError)

	fsm.Configure(StatePersistingExchange).
		OnEntry(func(ctx context.Context, args ...any) error {
			conversationID = a.recordExchange(ctx, conversationID, req.Prompt, req.Screenshot, fsmCtx.answer, false)
			return fsm.FireCtx(ctx, TriggerExchangePersisted)
		}).
		Permit(TriggerExchangePersisted, StateDone)

	fsm.Configure(StateError).
		OnEntry(func(ctx context.Context, args ...any) error {
			// Record the failure so the history shows what happened, but
			// only against an already-existing conversation: an ask that
			// never produced an answer should not mint a thread by itself.
			if req.ConversationID != "" {
				a.recordExchange(ctx, req.ConversationID, req.Prompt, "", fsmCtx.lastError.Error(), true)
			}
			return nil
		})

	fsm.Configure(StateDone)

	if err := fsm.FireCtx(ctx, TriggerAsk); err != nil {
		return nil, fmt.Errorf("ask flow error: %w", err)
	}

	state, err := fsm.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("ask flow error: %w", err)
	}
	switch state {
	case StateDone:
		return &AskResult{Answer: fsmCtx.answer, ConversationID: conversationID}, nil
	case StateError:
		return nil, fsmCtx.lastError
	default:
		return nil, fmt.Errorf("ask flow ended in unexpected state: %v", state)
	}
}

// recordExchange persists the user turn and the assistant turn, creating the
// conversation first when needed. Failures are logged and swallowed: the
// primary ask flow must never be blocked by a database hiccup.
func (a *Agent) recordExchange(ctx context.Context, conversationID, prompt, screenshot, answer string, isError bool) string {
	if a.history == nil {
		return ""
	}
	if conversationID == "" {
		conv, err := a.history.CreateConversation(ctx, screenshot)
		if err != nil {
			a.logger.Error("failed to create conversation; answer not saved", "error", err)
			return ""
		}
		conversationID = conv.ID
	}
	if _, err := a.history.SaveMessage(ctx, conversationID, store.RoleUser, prompt, false); err != nil {
		a.logger.Error("failed to save user message", "error", err, "conversation", conversationID)
		return conversationID
	}
	if _, err := a.history.SaveMessage(ctx, conversationID, store.RoleAssistant, answer, isError); err != nil {
		a.logger.Error("failed to save assistant message", "error", err, "conversation", conversationID)
	}
	return conversationID
}
