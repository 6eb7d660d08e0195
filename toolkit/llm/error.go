package llm

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	// ErrSchemaMismatch is matched by an APIError when the API rejected the declared tools or
	// the arguments did not fit them. It is only ever detected server-side.
	ErrSchemaMismatch = errors.New("tool schema mismatch")
	// ErrToolRoundsExhausted is returned when the model still asks for functions after the last
	// allowed tool round.
	ErrToolRoundsExhausted = errors.New("tool rounds exhausted")
	// ErrUnmatchedCallID is returned when a function call output does not answer an earlier call.
	ErrUnmatchedCallID = errors.New("function call output does not match any earlier call")
)

type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error calling %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type ParseError struct {
	What  string
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	input := e.Input
	if len(input) > 256 {
		cut := 256
		for cut > 0 && !utf8.RuneStart(input[cut]) {
			cut--
		}
		input = input[:cut] + "..."
	}
	if e.Err == nil {
		return fmt.Sprintf("error parsing %s: %q", e.What, input)
	}
	return fmt.Sprintf("error parsing %s: %v: %q", e.What, e.Err, input)
}

func (e *ParseError) Unwrap() error { return e.Err }

type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Param      string
	Message    string
}

func (e *APIError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "non-ok status (%d) from OpenAI", e.StatusCode)
	if e.Type != "" || e.Code != "" {
		fmt.Fprintf(&sb, " [%s/%s]", e.Type, e.Code)
	}
	if e.Param != "" {
		fmt.Fprintf(&sb, " param %s", e.Param)
	}
	if e.Message != "" {
		sb.WriteString(": " + e.Message)
	}
	return sb.String()
}

func (e *APIError) Is(target error) bool {
	if target != ErrSchemaMismatch {
		return false
	}
	return e.Code == "invalid_function_parameters" ||
		strings.HasPrefix(e.Param, "tools") ||
		strings.Contains(e.Param, "parameters")
}

type UnknownFunctionError struct {
	Name   string
	CallID string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function %q (call %s)", e.Name, e.CallID)
}
