package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/markusylisiurunen/roundtrip/internal/logger"
	"github.com/markusylisiurunen/roundtrip/toolkit/llm"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	mux       sync.Mutex
	responses []*llm.Response
	err       error
	sent      [][]llm.Message
	hosted    []int
	release   chan struct{}
}

func (f *fakeCompleter) Complete(_ context.Context, messages []llm.Message, tools *llm.Registry, _ ...llm.RequestOption) (*llm.Response, error) {
	if f.release != nil {
		<-f.release
	}
	f.mux.Lock()
	defer f.mux.Unlock()
	f.sent = append(f.sent, messages)
	f.hosted = append(f.hosted, len(tools.Hosted()))
	if f.err != nil {
		return nil, f.err
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

type staticTool struct{ output string }

func (s staticTool) Schema() llm.Schema {
	return llm.Schema{Name: "get_weather", Parameters: []byte(`{"type":"object"}`)}
}

func (s staticTool) Call(context.Context, string) (string, error) { return s.output, nil }

func callResponse() *llm.Response {
	call := llm.FunctionCall{CallID: "call_1", Name: "get_weather", Arguments: `{"latitude":1,"longitude":2}`}
	return &llm.Response{ID: "resp_1", Output: []llm.OutputItem{{Type: llm.OutputItemFunctionCall, FunctionCall: &call}}}
}

func textResponse(text string, citations ...llm.Citation) *llm.Response {
	return &llm.Response{
		ID:         "resp_2",
		OutputText: text,
		Output: []llm.OutputItem{{
			Type:    llm.OutputItemMessage,
			Message: &llm.OutputMessage{Role: llm.RoleAssistant, Content: llm.ContentParts{llm.NewTextContentPart(text)}, Citations: citations},
		}},
		Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 5},
	}
}

func TestAgentRun(t *testing.T) {
	client := &fakeCompleter{responses: []*llm.Response{callResponse(), textResponse("It is 20.5°C.")}}
	a, err := New(logger.NoOp(), client, []llm.Tool{staticTool{output: "20.5"}})
	require.NoError(t, err)

	events, unsubscribe := a.Subscribe()
	var (
		wg     sync.WaitGroup
		states []llm.State
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for event := range events {
			if e, ok := event.(*StateEvent); ok {
				states = append(states, e.State)
			}
		}
	}()
	require.NoError(t, a.Run(context.Background(), "weather?"))
	unsubscribe()
	wg.Wait()

	require.Equal(t, []llm.State{
		llm.StateAwaitingUserInput,
		llm.StateModelResponding,
		llm.StateExecutingTool,
		llm.StateAwaitingFollowupResponse,
		llm.StateDone,
	}, states)
	messages, usage := a.GetState()
	require.Len(t, messages, 4)
	require.Equal(t, "20.5", messages[2].FunctionCallOutput.Output)
	require.Equal(t, "It is 20.5°C.", messages[3].Content.Text())
	require.Equal(t, 10, usage.PromptTokens)
	require.Len(t, a.GetSnapshots(), 2)
	require.Equal(t, llm.StateDone, a.GetRoundTripState())
	require.False(t, a.GetIsRunning())
}

func TestAgentWebSearchToggle(t *testing.T) {
	citation := llm.Citation{URL: "https://example.com", Title: "Example"}
	client := &fakeCompleter{responses: []*llm.Response{textResponse("one"), textResponse("two", citation)}}
	a, err := New(logger.NoOp(), client, nil, WithWebSearch(llm.WebSearch{ContextSize: "low"}))
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background(), "first"))
	require.Empty(t, a.GetCitations())
	a.SetWebSearch(true)
	require.True(t, a.GetWebSearch())
	require.NoError(t, a.Run(context.Background(), "second"))
	require.Equal(t, []int{0, 1}, client.hosted)
	require.Equal(t, []llm.Citation{citation}, a.GetCitations())
	// the second request carries the first exchange
	require.Len(t, client.sent[1], 3)
}

func TestAgentReset(t *testing.T) {
	client := &fakeCompleter{responses: []*llm.Response{textResponse("one")}}
	a, err := New(logger.NoOp(), client, nil)
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background(), "first"))
	a.Reset()
	messages, usage := a.GetState()
	require.Empty(t, messages)
	require.Equal(t, llm.Usage{}, usage)
	require.Empty(t, a.GetSnapshots())
}

func TestAgentSendReportsErrors(t *testing.T) {
	boom := errors.New("boom")
	a, err := New(logger.NoOp(), &fakeCompleter{err: boom}, nil)
	require.NoError(t, err)
	events, unsubscribe := a.Subscribe()
	defer unsubscribe()
	a.Send(context.Background(), "hi")
	for event := range events {
		if e, ok := event.(*ErrorEvent); ok {
			require.ErrorIs(t, e.Err, boom)
			break
		}
	}
}

func TestNewRejectsDuplicateTools(t *testing.T) {
	_, err := New(logger.NoOp(), &fakeCompleter{}, []llm.Tool{staticTool{}, staticTool{}})
	require.Error(t, err)
}

func TestAgentStaysResponsiveWhileSubscriberIsIdle(t *testing.T) {
	client := &fakeCompleter{responses: []*llm.Response{textResponse("one")}, release: make(chan struct{})}
	a, err := New(logger.NoOp(), client, nil)
	require.NoError(t, err)
	events, unsubscribe := a.Subscribe()
	a.Send(context.Background(), "first")
	<-events

	// the agent is now blocked delivering the next event to an idle subscriber
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.SetWebSearch(true)
		unsubscribe()
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("toggling web search and unsubscribing blocked on a running agent")
	}
	_, open := <-events
	require.False(t, open)
	require.True(t, a.GetWebSearch())

	close(client.release)
	require.Eventually(t, func() bool { return !a.GetIsRunning() }, 2*time.Second, 10*time.Millisecond)
}
