package relay

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/comigor/deepassist-go/internal/history"
	"github.com/comigor/deepassist-go/internal/llm"
	"github.com/comigor/deepassist-go/internal/prompt"
)

type stubCompleter struct {
	replies []string
	err     error
	prompts [][]openai.ChatCompletionMessage
}

func (s *stubCompleter) Complete(_ context.Context, msgs []openai.ChatCompletionMessage) (string, error) {
	s.prompts = append(s.prompts, msgs)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		panic("stubCompleter: no more replies configured")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

const system = "SYSTEM"

func newRelay(c Completer) *Relay {
	return New(c, prompt.Assembler{System: system})
}

func TestProcess_AssemblesFullConversation(t *testing.T) {
	stub := &stubCompleter{replies: []string{"b", "d"}}
	r := newRelay(stub)
	h := history.New()

	out, err := r.Process(context.Background(), h, "a")
	require.NoError(t, err)
	require.Equal(t, "b", out)

	out, err = r.Process(context.Background(), h, "c")
	require.NoError(t, err)
	require.Equal(t, "d", out)

	require.Equal(t, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: "a"},
		{Role: openai.ChatMessageRoleAssistant, Content: "b"},
		{Role: openai.ChatMessageRoleUser, Content: "c"},
	}, stub.prompts[1])
}

func TestProcess_HistoryGrowsByTwoPerTurn(t *testing.T) {
	const turns = 5
	stub := &stubCompleter{}
	for i := 0; i < turns; i++ {
		stub.replies = append(stub.replies, fmt.Sprintf("reply %d", i))
	}
	r := newRelay(stub)
	h := history.New()

	for i := 1; i <= turns; i++ {
		_, err := r.Process(context.Background(), h, fmt.Sprintf("q %d", i))
		require.NoError(t, err)
		require.Equal(t, 2*i, h.Len())
	}

	for i, m := range h.Snapshot() {
		if i%2 == 0 {
			require.Equal(t, history.RoleUser, m.Role)
		} else {
			require.Equal(t, history.RoleAI, m.Role)
		}
	}
}

func TestProcess_SeededHistory(t *testing.T) {
	stub := &stubCompleter{replies: []string{"x", "y"}}
	r := newRelay(stub)
	h := history.New(history.NewAI("greeting"))

	for i := 1; i <= 2; i++ {
		_, err := r.Process(context.Background(), h, "q")
		require.NoError(t, err)
		require.Equal(t, 1+2*i, h.Len())
	}
	require.Equal(t, openai.ChatMessageRoleAssistant, stub.prompts[0][1].Role)
	require.Equal(t, "greeting", stub.prompts[0][1].Content)
}

func TestProcess_FailureLeavesOrphanUserMessage(t *testing.T) {
	backendErr := &llm.InferenceError{Err: errors.New("dial tcp 127.0.0.1:11434: connect: connection refused")}
	r := newRelay(&stubCompleter{err: backendErr})
	h := history.New()

	_, err := r.Process(context.Background(), h, "hello")
	require.ErrorIs(t, err, backendErr)

	msgs := h.Snapshot()
	require.Len(t, msgs, 1)
	require.Equal(t, history.RoleUser, msgs[0].Role)
	require.Equal(t, "hello", msgs[0].Content)
}

func TestHandle_MissingMessageDoesNotMutate(t *testing.T) {
	stub := &stubCompleter{}
	r := newRelay(stub)
	store := history.NewStore()

	_, err := r.Handle(context.Background(), store, "s", nil)
	require.ErrorIs(t, err, ErrMissingMessage)
	require.Empty(t, stub.prompts)
	_, ok := store.Get("s")
	require.False(t, ok)
}

func TestHandle_ReverseStringScenario(t *testing.T) {
	reply := "### Solution\n...\n### Code\n```python\ndef reverse(s): return s[::-1]\n```"
	r := newRelay(&stubCompleter{replies: []string{reply}})
	store := history.NewStore()
	msg := "Write a function that reverses a string"

	out, err := r.Handle(context.Background(), store, history.DefaultSession, &msg)
	require.NoError(t, err)
	require.Equal(t, reply, out)

	msgs, ok := store.Get(history.DefaultSession)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	require.Equal(t, msg, msgs[0].Content)
	require.Equal(t, reply, msgs[1].Content)
}

func TestHandle_SessionsAreIsolated(t *testing.T) {
	stub := &stubCompleter{replies: []string{"one", "two"}}
	r := newRelay(stub)
	store := history.NewStore()
	a, b := "from a", "from b"

	_, err := r.Handle(context.Background(), store, "a", &a)
	require.NoError(t, err)
	_, err = r.Handle(context.Background(), store, "b", &b)
	require.NoError(t, err)

	require.Len(t, stub.prompts[1], 2, "session b must not see session a's turns")
	require.Equal(t, "from b", stub.prompts[1][1].Content)
}

func TestHandle_EmptySessionRejected(t *testing.T) {
	msg := "hi"
	_, err := newRelay(&stubCompleter{}).Handle(context.Background(), history.NewStore(), "", &msg)
	require.ErrorIs(t, err, history.ErrEmptySession)
}

func TestTurn_FailedEndsWithoutAIAppend(t *testing.T) {
	backendErr := errors.New("model not found")
	r := newRelay(&stubCompleter{err: backendErr})
	h := history.New(history.NewUser("hi"))

	tr := r.newTurn("s", h)
	_, err := tr.run(context.Background(), r.assembler.Assemble(h.Snapshot()))
	require.ErrorIs(t, err, backendErr)

	state, err := tr.fsm.State(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateFailed, state)
	require.Equal(t, 1, h.Len())
	require.Equal(t, history.RoleUser, h.Snapshot()[0].Role)
}

func TestTurn_AnsweredAppendsReply(t *testing.T) {
	stub := &stubCompleter{replies: []string{"hello back"}}
	r := newRelay(stub)
	h := history.New(history.NewUser("hi"))

	tr := r.newTurn("s", h)
	out, err := tr.run(context.Background(), r.assembler.Assemble(h.Snapshot()))
	require.NoError(t, err)
	require.Equal(t, "hello back", out)

	state, err := tr.fsm.State(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateAnswered, state)
	require.Len(t, stub.prompts, 1, "backend is called once, from the Assembled entry action")

	last, ok := h.Last()
	require.True(t, ok)
	require.Equal(t, history.RoleAI, last.Role)
	require.Equal(t, "hello back", last.Content)
}
