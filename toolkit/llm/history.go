package llm

import (
	"fmt"
	"sync"
	"unicode/utf8"
)

// TokenCounter estimates how many tokens a piece of text costs.
type TokenCounter interface {
	CountTokens(text string) int
}

type approxCounter struct{}

// CountTokens uses the ~4 characters per token rule of thumb.
func (approxCounter) CountTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// Snapshot describes one submission of the history to the API. Items and EstimatedTokens
// measure what was resent; Usage is what the API billed for it.
type Snapshot struct {
	Turn            int
	Items           int
	EstimatedTokens int
	Usage           Usage
	TotalUsage      Usage
}

type Observer interface {
	Observe(snapshot Snapshot)
}

type ObserverFunc func(snapshot Snapshot)

func (f ObserverFunc) Observe(snapshot Snapshot) { f(snapshot) }

type HistoryOption func(*History)

func WithTokenCounter(counter TokenCounter) HistoryOption {
	return func(h *History) {
		if counter != nil {
			h.counter = counter
		}
	}
}
func WithObserver(observer Observer) HistoryOption {
	return func(h *History) {
		if observer != nil {
			h.observers = append(h.observers, observer)
		}
	}
}

// History is the append-only conversation log. Every request resends all of it, which is why
// each submission is reported to the observers.
type History struct {
	mux       sync.RWMutex
	messages  []Message
	calls     map[string]struct{}
	counter   TokenCounter
	observers []Observer
	snapshots []Snapshot
	total     Usage
}

func NewHistory(opts ...HistoryOption) *History {
	h := &History{
		calls:   make(map[string]struct{}),
		counter: approxCounter{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Append adds messages in order. A function call output must answer a call that is already in
// the log or earlier in the same batch; otherwise nothing is appended.
func (h *History) Append(messages ...Message) error {
	h.mux.Lock()
	defer h.mux.Unlock()
	pending := make(map[string]struct{})
	for _, msg := range messages {
		if msg.FunctionCall != nil {
			pending[msg.FunctionCall.CallID] = struct{}{}
		}
		if out := msg.FunctionCallOutput; out != nil {
			_, known := h.calls[out.CallID]
			_, batched := pending[out.CallID]
			if !known && !batched {
				return fmt.Errorf("%w: %s", ErrUnmatchedCallID, out.CallID)
			}
		}
	}
	for id := range pending {
		h.calls[id] = struct{}{}
	}
	h.messages = append(h.messages, messages...)
	return nil
}

func (h *History) Messages() []Message {
	h.mux.RLock()
	defer h.mux.RUnlock()
	return append([]Message(nil), h.messages...)
}

func (h *History) Len() int {
	h.mux.RLock()
	defer h.mux.RUnlock()
	return len(h.messages)
}

func (h *History) Usage() Usage {
	h.mux.RLock()
	defer h.mux.RUnlock()
	return h.total
}

func (h *History) Snapshots() []Snapshot {
	h.mux.RLock()
	defer h.mux.RUnlock()
	return append([]Snapshot(nil), h.snapshots...)
}

func (h *History) Reset() {
	h.mux.Lock()
	defer h.mux.Unlock()
	h.messages = nil
	h.calls = make(map[string]struct{})
	h.snapshots = nil
	h.total = Usage{}
}

// EstimateTokens estimates the size of messages with the history's token counter.
func (h *History) EstimateTokens(messages []Message) int {
	total := 0
	for _, msg := range messages {
		switch {
		case msg.FunctionCall != nil:
			total += h.counter.CountTokens(msg.FunctionCall.Name)
			total += h.counter.CountTokens(msg.FunctionCall.Arguments)
		case msg.FunctionCallOutput != nil:
			total += h.counter.CountTokens(msg.FunctionCallOutput.Output)
		default:
			total += h.counter.CountTokens(msg.Content.Text())
		}
	}
	return total
}

// record registers a submission of sent and notifies the observers outside the lock.
func (h *History) record(sent []Message, usage Usage) Snapshot {
	estimated := h.EstimateTokens(sent)
	h.mux.Lock()
	h.total = h.total.Add(usage)
	snapshot := Snapshot{
		Turn:            len(h.snapshots) + 1,
		Items:           len(sent),
		EstimatedTokens: estimated,
		Usage:           usage,
		TotalUsage:      h.total,
	}
	h.snapshots = append(h.snapshots, snapshot)
	observers := append([]Observer(nil), h.observers...)
	h.mux.Unlock()
	for _, o := range observers {
		o.Observe(snapshot)
	}
	return snapshot
}
