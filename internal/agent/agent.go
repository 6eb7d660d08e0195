package agent

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/markusylisiurunen/roundtrip/internal/logger"
	"github.com/markusylisiurunen/roundtrip/toolkit/llm"
)

var ErrBusy = errors.New("agent is already running")

type Event any

type ChangeEvent struct{}

type StateEvent struct {
	State llm.State
}

type ErrorEvent struct {
	Err error
}

type Option func(*Agent)

func WithInstructions(instructions string) Option {
	return func(a *Agent) { a.instructions = instructions }
}

func WithWebSearch(search llm.WebSearch) Option {
	return func(a *Agent) { a.search = search }
}

func WithTokenCounter(counter llm.TokenCounter) Option {
	return func(a *Agent) { a.counter = counter }
}

func WithMaxToolRounds(rounds int) Option {
	return func(a *Agent) { a.maxToolRounds = rounds }
}

// Agent runs one conversation at a time in the background and tells its subscribers when the
// history changes.
type Agent struct {
	mux           sync.RWMutex
	logger        logger.Logger
	client        llm.Completer
	tools         []llm.Tool
	search        llm.WebSearch
	counter       llm.TokenCounter
	instructions  string
	maxToolRounds int

	webSearch bool
	running   bool
	state     llm.State
	history   *llm.History
	citations []llm.Citation

	subscriptions []*subscription
}

// subscription delivers events to one subscriber until it is closed. A send blocked on a slow
// reader gives up as soon as the subscriber unsubscribes.
type subscription struct {
	mux  sync.Mutex
	ch   chan Event
	done chan struct{}
	once sync.Once
}

func (s *subscription) send(event Event) {
	s.mux.Lock()
	defer s.mux.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.ch <- event:
	case <-s.done:
	}
}

func (s *subscription) close() {
	s.once.Do(func() {
		close(s.done)
		s.mux.Lock()
		close(s.ch)
		s.mux.Unlock()
	})
}

func New(logger logger.Logger, client llm.Completer, tools []llm.Tool, opts ...Option) (*Agent, error) {
	a := &Agent{
		logger:        logger,
		client:        client,
		tools:         tools,
		maxToolRounds: 4,
		state:         llm.StateAwaitingUserInput,
	}
	for _, opt := range opts {
		opt(a)
	}
	// fail early on duplicate or unnamed tools
	if _, err := llm.NewRegistry(tools...); err != nil {
		return nil, err
	}
	a.history = a.newHistory()
	return a, nil
}

func (a *Agent) newHistory() *llm.History {
	return llm.NewHistory(
		llm.WithTokenCounter(a.counter),
		llm.WithObserver(llm.ObserverFunc(func(s llm.Snapshot) {
			a.logger.Info("turn %d: %d items, ~%d tokens, %d prompt tokens billed",
				s.Turn, s.Items, s.EstimatedTokens, s.Usage.PromptTokens)
			a.notify(&ChangeEvent{})
		})),
	)
}

func (a *Agent) Reset() {
	a.mux.Lock()
	defer a.mux.Unlock()
	if a.running {
		return
	}
	a.history = a.newHistory()
	a.citations = nil
	a.state = llm.StateAwaitingUserInput
}

func (a *Agent) Subscribe() (<-chan Event, func()) {
	sub := &subscription{ch: make(chan Event), done: make(chan struct{})}
	a.mux.Lock()
	a.subscriptions = append(a.subscriptions, sub)
	a.mux.Unlock()
	return sub.ch, func() {
		a.mux.Lock()
		if i := slices.Index(a.subscriptions, sub); i >= 0 {
			a.subscriptions = slices.Delete(a.subscriptions, i, i+1)
		}
		a.mux.Unlock()
		sub.close()
	}
}

func (a *Agent) SetWebSearch(enabled bool) {
	a.mux.Lock()
	defer a.mux.Unlock()
	a.webSearch = enabled
}

func (a *Agent) GetWebSearch() bool {
	a.mux.RLock()
	defer a.mux.RUnlock()
	return a.webSearch
}

func (a *Agent) GetIsRunning() bool {
	a.mux.RLock()
	defer a.mux.RUnlock()
	return a.running
}

func (a *Agent) GetRoundTripState() llm.State {
	a.mux.RLock()
	defer a.mux.RUnlock()
	return a.state
}

// GetState returns the conversation so far and the accumulated usage.
func (a *Agent) GetState() ([]llm.Message, llm.Usage) {
	a.mux.RLock()
	history := a.history
	a.mux.RUnlock()
	return history.Messages(), history.Usage()
}

func (a *Agent) GetSnapshots() []llm.Snapshot {
	a.mux.RLock()
	history := a.history
	a.mux.RUnlock()
	return history.Snapshots()
}

// GetCitations returns the web sources cited by the latest answer.
func (a *Agent) GetCitations() []llm.Citation {
	a.mux.RLock()
	defer a.mux.RUnlock()
	return slices.Clone(a.citations)
}

func (a *Agent) Send(ctx context.Context, message string) {
	go func() {
		if err := a.Run(ctx, message); err != nil && !errors.Is(err, ErrBusy) {
			a.notify(&ErrorEvent{Err: err})
		}
	}()
}

// Run sends message and blocks until the round trip finishes.
func (a *Agent) Run(ctx context.Context, message string) error {
	a.mux.Lock()
	if a.running {
		a.mux.Unlock()
		return ErrBusy
	}
	a.running = true
	roundTrip, err := a.newRoundTrip()
	a.mux.Unlock()
	defer func() {
		a.mux.Lock()
		a.running = false
		a.mux.Unlock()
		a.notify(&ChangeEvent{})
	}()
	if err != nil {
		return err
	}
	result, err := roundTrip.Run(ctx, message)
	if result != nil {
		var citations []llm.Citation
		for _, resp := range result.Responses {
			citations = append(citations, resp.Citations()...)
		}
		a.mux.Lock()
		a.citations = citations
		a.mux.Unlock()
	}
	return err
}

func (a *Agent) newRoundTrip() (*llm.RoundTrip, error) {
	registry, err := llm.NewRegistry(a.tools...)
	if err != nil {
		return nil, err
	}
	if a.webSearch {
		registry.Host(a.search)
	}
	var requestOptions []llm.RequestOption
	if a.instructions != "" {
		requestOptions = append(requestOptions, llm.WithInstructions(a.instructions))
	}
	return llm.NewRoundTrip(a.logger, a.client, registry, a.history,
		llm.WithMaxToolRounds(a.maxToolRounds),
		llm.WithRequestOptions(requestOptions...),
		llm.WithStateHook(func(state llm.State) {
			a.mux.Lock()
			a.state = state
			a.mux.Unlock()
			a.notify(&StateEvent{State: state})
		}),
	), nil
}

// notify sends without holding the agent lock so subscribers may call back into the agent
// between two events.
func (a *Agent) notify(event Event) {
	a.mux.RLock()
	subscriptions := slices.Clone(a.subscriptions)
	a.mux.RUnlock()
	for _, sub := range subscriptions {
		sub.send(event)
	}
}
