package llm

import (
	"context"
	"fmt"

	"github.com/markusylisiurunen/roundtrip/internal/logger"
)

type State string

const (
	StateAwaitingUserInput        State = "AWAITING_USER_INPUT"
	StateModelResponding          State = "MODEL_RESPONDING"
	StateExecutingTool            State = "EXECUTING_TOOL"
	StateAwaitingFollowupResponse State = "AWAITING_FOLLOWUP_RESPONSE"
	StateDone                     State = "DONE"
)

// Completer is the part of the API client a round trip needs.
type Completer interface {
	Complete(ctx context.Context, messages []Message, tools *Registry, opts ...RequestOption) (*Response, error)
}

var _ Completer = (*OpenAI)(nil)

type RoundTripOption func(*RoundTrip)

// WithMaxToolRounds sets how many times function outputs may be sent back before giving up.
// The default is one.
func WithMaxToolRounds(rounds int) RoundTripOption {
	return func(rt *RoundTrip) { rt.maxToolRounds = max(1, rounds) }
}
func WithStateHook(hook func(State)) RoundTripOption {
	return func(rt *RoundTrip) { rt.onState = hook }
}
func WithRequestOptions(opts ...RequestOption) RoundTripOption {
	return func(rt *RoundTrip) { rt.requestOptions = append(rt.requestOptions, opts...) }
}
func WithDispatcher(dispatcher *Dispatcher) RoundTripOption {
	return func(rt *RoundTrip) { rt.dispatcher = dispatcher }
}

type RoundTrip struct {
	logger         logger.Logger
	client         Completer
	registry       *Registry
	dispatcher     *Dispatcher
	history        *History
	maxToolRounds  int
	onState        func(State)
	requestOptions []RequestOption
}

func NewRoundTrip(logger logger.Logger, client Completer, registry *Registry, history *History, opts ...RoundTripOption) *RoundTrip {
	rt := &RoundTrip{
		logger:        logger,
		client:        client,
		registry:      registry,
		history:       history,
		maxToolRounds: 1,
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.dispatcher == nil {
		rt.dispatcher = NewDispatcher(logger, registry)
	}
	if rt.history == nil {
		rt.history = NewHistory()
	}
	return rt
}

func (rt *RoundTrip) History() *History { return rt.history }

type Result struct {
	Text      string
	Responses []*Response
	Calls     []FunctionCall
	Outputs   []FunctionCallOutput
}

// Run appends query to the history and drives it to a final answer. When the model asks for
// functions, only the calls and their outputs are appended, pairwise in call order, and the
// whole history is submitted again. Text the model wrote next to a call is not kept.
func (rt *RoundTrip) Run(ctx context.Context, query string) (*Result, error) {
	rt.setState(StateAwaitingUserInput)
	if err := rt.history.Append(NewUserMessage(query)); err != nil {
		return nil, err
	}
	rt.setState(StateModelResponding)
	resp, err := rt.submit(ctx)
	if err != nil {
		return nil, err
	}
	result := &Result{Responses: []*Response{resp}}
	for round := 0; ; round++ {
		calls := resp.FunctionCalls()
		result.Text = resp.OutputText
		if len(calls) == 0 {
			if err := rt.history.Append(resp.Messages()...); err != nil {
				return result, err
			}
			rt.setState(StateDone)
			return result, nil
		}
		if round >= rt.maxToolRounds {
			return result, fmt.Errorf("%w: %d unanswered function calls after %d rounds", ErrToolRoundsExhausted, len(calls), round)
		}
		rt.setState(StateExecutingTool)
		outputs, err := rt.dispatcher.Dispatch(ctx, calls)
		if err != nil {
			return result, err
		}
		result.Calls = append(result.Calls, calls...)
		result.Outputs = append(result.Outputs, outputs...)
		followup := make([]Message, 0, 2*len(calls))
		for i, call := range calls {
			followup = append(followup, NewFunctionCallMessage(call), NewFunctionCallOutputMessage(outputs[i]))
		}
		if err := rt.history.Append(followup...); err != nil {
			return result, err
		}
		rt.setState(StateAwaitingFollowupResponse)
		resp, err = rt.submit(ctx)
		if err != nil {
			return result, err
		}
		result.Responses = append(result.Responses, resp)
	}
}

func (rt *RoundTrip) submit(ctx context.Context) (*Response, error) {
	sent := rt.history.Messages()
	resp, err := rt.client.Complete(ctx, sent, rt.registry, rt.requestOptions...)
	if err != nil {
		return nil, fmt.Errorf("error completing %d messages: %w", len(sent), err)
	}
	snapshot := rt.history.record(sent, resp.Usage)
	rt.logger.Debug("turn %d sent %d items (~%d tokens), billed %d prompt tokens",
		snapshot.Turn, snapshot.Items, snapshot.EstimatedTokens, resp.Usage.PromptTokens)
	return resp, nil
}

func (rt *RoundTrip) setState(state State) {
	if rt.onState != nil {
		rt.onState(state)
	}
}
