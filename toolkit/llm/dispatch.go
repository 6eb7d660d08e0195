package llm

import (
	"context"
	"fmt"

	"github.com/markusylisiurunen/roundtrip/internal/logger"
	"github.com/tidwall/gjson"
)

type DispatcherOption func(*Dispatcher)

// WithUnknownFunctionFeedback answers calls to unregistered functions with an error output the
// model can read, instead of failing the dispatch.
func WithUnknownFunctionFeedback() DispatcherOption {
	return func(d *Dispatcher) { d.unknownFeedback = true }
}

// Dispatcher runs function calls against the handlers of a registry, one at a time in the order
// the model emitted them.
type Dispatcher struct {
	logger          logger.Logger
	registry        *Registry
	unknownFeedback bool
}

func NewDispatcher(logger logger.Logger, registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{logger: logger, registry: registry}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch returns one output per call, in call order. Arguments and function names of the
// whole batch are checked before any handler runs.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []FunctionCall) ([]FunctionCallOutput, error) {
	for _, call := range calls {
		if !gjson.Valid(call.Arguments) {
			d.logger.Error("function %s called with invalid JSON arguments", call.Name)
			return nil, &ParseError{What: fmt.Sprintf("arguments of %s", call.Name), Input: call.Arguments}
		}
		if _, ok := d.registry.Lookup(call.Name); !ok && !d.unknownFeedback {
			d.logger.Error("function %s is not registered", call.Name)
			return nil, &UnknownFunctionError{Name: call.Name, CallID: call.CallID}
		}
	}
	outputs := make([]FunctionCallOutput, 0, len(calls))
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tool, ok := d.registry.Lookup(call.Name)
		if !ok {
			outputs = append(outputs, FunctionCallOutput{
				CallID: call.CallID,
				Output: fmt.Sprintf("Error: unknown function %q", call.Name),
			})
			continue
		}
		d.logger.Debug("calling function %s (call %s) with %s", call.Name, call.CallID, call.Arguments)
		result, err := tool.Call(ctx, call.Arguments)
		if err != nil {
			return nil, fmt.Errorf("error calling function %s: %w", call.Name, err)
		}
		d.logger.Debug("function %s returned %q", call.Name, result)
		outputs = append(outputs, FunctionCallOutput{CallID: call.CallID, Output: result})
	}
	return outputs, nil
}
