package llm

import (
	"encoding/json"
	"strings"
)

type OutputItemType string

const (
	OutputItemMessage       OutputItemType = "message"
	OutputItemFunctionCall  OutputItemType = "function_call"
	OutputItemWebSearchCall OutputItemType = "web_search_call"
)

type Citation struct {
	Title      string
	URL        string
	StartIndex int
	EndIndex   int
}

type OutputMessage struct {
	ID        string
	Role      Role
	Content   ContentParts
	Citations []Citation
}

type WebSearchCall struct {
	ID     string
	Status string
	Query  string
}

// OutputItem is one entry of a response's output. The typed field matching Type is set; items
// of unknown types only carry Raw.
type OutputItem struct {
	Type          OutputItemType
	Message       *OutputMessage
	FunctionCall  *FunctionCall
	WebSearchCall *WebSearchCall
	Raw           json.RawMessage
}

type Response struct {
	ID         string
	Model      string
	Status     string
	Output     []OutputItem
	OutputText string
	Usage      Usage
}

// FunctionCalls returns the function calls of the response in output order.
func (r *Response) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, item := range r.Output {
		if item.Type == OutputItemFunctionCall && item.FunctionCall != nil {
			calls = append(calls, *item.FunctionCall)
		}
	}
	return calls
}

func (r *Response) WebSearchCalls() []WebSearchCall {
	var calls []WebSearchCall
	for _, item := range r.Output {
		if item.Type == OutputItemWebSearchCall && item.WebSearchCall != nil {
			calls = append(calls, *item.WebSearchCall)
		}
	}
	return calls
}

func (r *Response) Citations() []Citation {
	var citations []Citation
	for _, item := range r.Output {
		if item.Message != nil {
			citations = append(citations, item.Message.Citations...)
		}
	}
	return citations
}

// Messages converts the replayable output items back into history entries: assistant text and
// function calls. Server-side items such as web search calls are dropped.
func (r *Response) Messages() []Message {
	var messages []Message
	for _, item := range r.Output {
		switch {
		case item.Message != nil && item.Message.Content.Text() != "":
			msg := NewAssistantMessage(item.Message.Content.Text())
			if item.Message.ID != "" {
				msg.ID = item.Message.ID
			}
			messages = append(messages, msg)
		case item.FunctionCall != nil:
			messages = append(messages, NewFunctionCallMessage(*item.FunctionCall))
		}
	}
	return messages
}

func (r *Response) text() string {
	var parts []string
	for _, item := range r.Output {
		if item.Message != nil && item.Message.Role == RoleAssistant {
			if text := item.Message.Content.Text(); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}
