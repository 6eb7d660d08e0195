package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type wordCounter struct{}

func (wordCounter) CountTokens(text string) int {
	n := 0
	inWord := false
	for _, r := range text {
		if r == ' ' {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}

func TestHistoryAppendRejectsUnmatchedOutput(t *testing.T) {
	h := NewHistory()
	require.NoError(t, h.Append(NewUserMessage("weather?")))
	err := h.Append(NewFunctionCallOutputMessage(FunctionCallOutput{CallID: "call_missing", Output: "20.5"}))
	require.ErrorIs(t, err, ErrUnmatchedCallID)
	require.Equal(t, 1, h.Len())
}

func TestHistoryAppendAcceptsCallAndOutputInOneBatch(t *testing.T) {
	h := NewHistory()
	require.NoError(t, h.Append(
		NewUserMessage("weather?"),
		NewFunctionCallMessage(FunctionCall{CallID: "call_1", Name: "get_weather", Arguments: `{}`}),
		NewFunctionCallOutputMessage(FunctionCallOutput{CallID: "call_1", Output: "20.5"}),
	))
	require.Equal(t, 3, h.Len())
	require.NoError(t, h.Append(NewFunctionCallOutputMessage(FunctionCallOutput{CallID: "call_1", Output: "21.0"})))
}

func TestHistoryMessagesIsACopy(t *testing.T) {
	h := NewHistory()
	require.NoError(t, h.Append(NewUserMessage("one")))
	messages := h.Messages()
	messages[0] = NewUserMessage("changed")
	require.Equal(t, "one", h.Messages()[0].Content.Text())
}

func TestHistoryRecordNotifiesObservers(t *testing.T) {
	var seen []Snapshot
	h := NewHistory(WithTokenCounter(wordCounter{}), WithObserver(ObserverFunc(func(s Snapshot) {
		seen = append(seen, s)
	})))
	require.NoError(t, h.Append(NewUserMessage("what is the weather")))
	h.record(h.Messages(), Usage{PromptTokens: 10, CompletionTokens: 2})
	require.NoError(t, h.Append(
		NewFunctionCallMessage(FunctionCall{CallID: "c1", Name: "get_weather", Arguments: `{"latitude":1}`}),
		NewFunctionCallOutputMessage(FunctionCallOutput{CallID: "c1", Output: "20.5"}),
	))
	h.record(h.Messages(), Usage{PromptTokens: 25, CompletionTokens: 5})
	require.Len(t, seen, 2)
	require.Equal(t, Snapshot{
		Turn:            1,
		Items:           1,
		EstimatedTokens: 4,
		Usage:           Usage{PromptTokens: 10, CompletionTokens: 2},
		TotalUsage:      Usage{PromptTokens: 10, CompletionTokens: 2},
	}, seen[0])
	require.Equal(t, 2, seen[1].Turn)
	require.Equal(t, 3, seen[1].Items)
	require.Equal(t, 4+1+1+1, seen[1].EstimatedTokens)
	require.Equal(t, Usage{PromptTokens: 35, CompletionTokens: 7}, seen[1].TotalUsage)
	require.Equal(t, seen, h.Snapshots())
	require.Equal(t, Usage{PromptTokens: 35, CompletionTokens: 7}, h.Usage())
}

func TestHistoryReset(t *testing.T) {
	h := NewHistory()
	require.NoError(t, h.Append(
		NewFunctionCallMessage(FunctionCall{CallID: "c1", Name: "x", Arguments: `{}`}),
	))
	h.record(h.Messages(), Usage{PromptTokens: 1})
	h.Reset()
	require.Zero(t, h.Len())
	require.Empty(t, h.Snapshots())
	require.Equal(t, Usage{}, h.Usage())
	err := h.Append(NewFunctionCallOutputMessage(FunctionCallOutput{CallID: "c1", Output: "late"}))
	require.ErrorIs(t, err, ErrUnmatchedCallID)
}

func TestApproxCounter(t *testing.T) {
	require.Equal(t, 0, approxCounter{}.CountTokens(""))
	require.Equal(t, 1, approxCounter{}.CountTokens("abcd"))
	require.Equal(t, 2, approxCounter{}.CountTokens("abcde"))
}
