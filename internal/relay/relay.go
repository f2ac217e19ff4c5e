package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qmuntal/stateless"
	"github.com/sashabaranov/go-openai"

	"github.com/comigor/deepassist-go/internal/history"
	"github.com/comigor/deepassist-go/internal/logger"
	"github.com/comigor/deepassist-go/internal/prompt"
)

// ErrMissingMessage is returned when a request carries no message field.
var ErrMissingMessage = errors.New("message is required")

// Turn states
type TurnState string

const (
	StateReceived  TurnState = "Received"
	StateAssembled TurnState = "Assembled"
	StateAnswered  TurnState = "Answered" // Terminal: ai message appended
	StateFailed    TurnState = "Failed"   // Terminal: user message left unanswered
)

// Turn triggers
type TurnTrigger string

const (
	TriggerAssembled TurnTrigger = "PromptAssembled"
	TriggerAnswered  TurnTrigger = "BackendAnswered"
	TriggerFailed    TurnTrigger = "BackendFailed"
)

// Completer is the inference call; *llm.Completer satisfies it.
type Completer interface {
	Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error)
}

// Relay ties history, prompt assembly and inference into one turn.
type Relay struct {
	assembler prompt.Assembler
	completer Completer
}

// New creates a relay.
func New(completer Completer, assembler prompt.Assembler) *Relay {
	return &Relay{assembler: assembler, completer: completer}
}

// turn carries one request through the state machine.
type turn struct {
	fsm    *stateless.StateMachine
	prompt []openai.ChatCompletionMessage
	reply  string
	err    error
}

// newTurn configures the lifecycle of one turn against h. Entering
// Assembled calls the backend; entering Answered appends the ai message.
func (r *Relay) newTurn(sessionID string, h *history.History) *turn {
	t := &turn{}
	fsm := stateless.NewStateMachine(StateReceived)

	fsm.Configure(StateReceived).
		Permit(TriggerAssembled, StateAssembled)

	fsm.Configure(StateAssembled).
		OnEntryFrom(TriggerAssembled, func(ctx context.Context, _ ...any) error {
			logger.L.Info("inference request", "session_id", sessionID, "prompt_messages", len(t.prompt))
			t.reply, t.err = r.completer.Complete(ctx, t.prompt)
			if t.err != nil {
				return fsm.FireCtx(ctx, TriggerFailed)
			}
			return fsm.FireCtx(ctx, TriggerAnswered)
		}).
		Permit(TriggerAnswered, StateAnswered).
		Permit(TriggerFailed, StateFailed)

	fsm.Configure(StateAnswered).
		OnEntry(func(_ context.Context, _ ...any) error {
			h.Append(history.NewAI(t.reply))
			return nil
		})

	fsm.Configure(StateFailed).
		OnEntry(func(_ context.Context, _ ...any) error {
			logger.L.Error("process error", "session_id", sessionID, "error", t.err)
			return nil
		})

	fsm.OnTransitioned(func(_ context.Context, tr stateless.Transition) {
		logger.L.Debug("relay turn transition", "session_id", sessionID, "from", tr.Source, "to", tr.Destination, "trigger", tr.Trigger)
	})

	t.fsm = fsm
	return t
}

// run fires the assembled prompt into the machine and reports its terminal state.
func (t *turn) run(ctx context.Context, prompt []openai.ChatCompletionMessage) (string, error) {
	t.prompt = prompt
	if err := t.fsm.FireCtx(ctx, TriggerAssembled); err != nil {
		return "", fmt.Errorf("relay turn: %w", err)
	}

	state, err := t.fsm.State(ctx)
	if err != nil {
		return "", fmt.Errorf("relay turn: %w", err)
	}
	switch state {
	case StateAnswered:
		return t.reply, nil
	case StateFailed:
		return "", t.err
	default:
		return "", fmt.Errorf("relay turn: stopped in state %v", state)
	}
}

// Handle runs one turn for sessionID in store. A nil message is rejected
// before any history is touched.
func (r *Relay) Handle(ctx context.Context, store *history.Store, sessionID string, message *string) (string, error) {
	if message == nil {
		return "", ErrMissingMessage
	}
	var reply string
	err := store.Do(sessionID, func(h *history.History) error {
		var err error
		reply, err = r.process(ctx, sessionID, h, *message)
		return err
	})
	return reply, err
}

// Process runs one turn against h: append the user message, assemble,
// complete, append the reply. On failure the user message stays in h
// without an answer.
func (r *Relay) Process(ctx context.Context, h *history.History, message string) (string, error) {
	return r.process(ctx, "", h, message)
}

func (r *Relay) process(ctx context.Context, sessionID string, h *history.History, message string) (string, error) {
	start := time.Now()

	h.Append(history.NewUser(message))

	reply, err := r.newTurn(sessionID, h).run(ctx, r.assembler.Assemble(h.Snapshot()))
	if err != nil {
		return "", err
	}

	logger.L.Info("inference response", "session_id", sessionID, "history_len", h.Len(), "duration_ms", time.Since(start).Milliseconds())
	return reply, nil
}
