package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Schema declares a function the model may ask the caller to run. Parameters is a JSON Schema
// object; with Strict set the API requires every property to be listed in "required" and
// "additionalProperties" to be false. None of this is checked locally.
type Schema struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Strict      bool
}

type Tool interface {
	Schema() Schema
	Call(ctx context.Context, args string) (string, error)
}

// HostedTool is a tool the API runs itself, such as web search. The caller only declares it.
type HostedTool interface {
	definition() any
}

// web search --------------------------------------------------------------------------------------

type WebSearchLocation struct {
	City     string
	Country  string
	Region   string
	Timezone string
}

type WebSearch struct {
	// ContextSize is one of "low", "medium" or "high"; empty leaves the API default.
	ContextSize string
	Location    *WebSearchLocation
}

var _ HostedTool = WebSearch{}

func (w WebSearch) definition() any {
	v := openai_Request_WebSearchTool{
		Type:              "web_search_preview",
		SearchContextSize: w.ContextSize,
	}
	if w.Location != nil {
		v.UserLocation = &openai_Request_WebSearchTool_Location{
			Type:     "approximate",
			City:     w.Location.City,
			Country:  w.Location.Country,
			Region:   w.Location.Region,
			Timezone: w.Location.Timezone,
		}
	}
	return v
}

// registry ----------------------------------------------------------------------------------------

// Registry maps tool names to their handlers. It is built once before the conversation starts
// and is not safe for concurrent mutation.
type Registry struct {
	tools  map[string]Tool
	order  []string
	hosted []HostedTool
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	name := tool.Schema().Name
	if name == "" {
		return fmt.Errorf("tool name is empty")
	}
	if _, ok := r.tools[name]; ok {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) Host(tools ...HostedTool) {
	for _, tool := range tools {
		if tool != nil {
			r.hosted = append(r.hosted, tool)
		}
	}
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	tool, ok := r.tools[name]
	return tool, ok
}

// Tools returns the function tools in registration order.
func (r *Registry) Tools() []Tool {
	if r == nil {
		return nil
	}
	tools := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

func (r *Registry) Hosted() []HostedTool {
	if r == nil {
		return nil
	}
	return append([]HostedTool(nil), r.hosted...)
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order) + len(r.hosted)
}
