package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/markusylisiurunen/roundtrip/internal/logger"
	"github.com/tidwall/gjson"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAITimeout = 300 * time.Second
)

type OpenAIOption func(*OpenAI)

func WithBaseURL(baseURL string) OpenAIOption {
	return func(o *OpenAI) {
		if baseURL != "" {
			o.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}
func WithTimeout(timeout time.Duration) OpenAIOption {
	return func(o *OpenAI) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(o *OpenAI) { o.client = client }
}

// OpenAI is a client for the Responses API. It holds no conversation state; every call sends
// whatever history the caller passes in.
type OpenAI struct {
	logger  logger.Logger
	token   string
	model   string
	baseURL string
	timeout time.Duration
	client  *http.Client
}

func NewOpenAI(logger logger.Logger, token, model string, opts ...OpenAIOption) *OpenAI {
	o := &OpenAI{
		logger:  logger,
		token:   token,
		model:   model,
		baseURL: DefaultOpenAIBaseURL,
		timeout: DefaultOpenAITimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: o.timeout}
	}
	return o
}

func (o *OpenAI) Model() string { return o.model }

// Complete sends messages and the tools declared in tools (which may be nil) and blocks until
// the API answers. Nothing is retried.
func (o *OpenAI) Complete(ctx context.Context, messages []Message, tools *Registry, opts ...RequestOption) (*Response, error) {
	config := requestConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&config)
		}
	}
	payload, err := o.payload(messages, tools, config)
	if err != nil {
		return nil, err
	}
	var data bytes.Buffer
	encoder := json.NewEncoder(&data)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(payload); err != nil {
		return nil, fmt.Errorf("error marshalling request: %w", err)
	}
	o.logger.Debugj("OpenAI request payload", data.Bytes())
	endpoint := o.baseURL + "/responses"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &data)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("authorization", "Bearer "+o.token)
	req.Header.Set("content-type", "application/json")
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("error reading response body: %w", err)}
	}
	o.logger.Debugj("OpenAI response payload", body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, o.apiError(resp.StatusCode, body)
	}
	return o.parse(body)
}

func (o *OpenAI) payload(messages []Message, tools *Registry, config requestConfig) (*openai_Request, error) {
	payload := &openai_Request{
		Input:              []openai_Message{},
		Instructions:       config.instructions,
		MaxOutputTokens:    config.maxOutputTokens,
		Model:              o.model,
		PreviousResponseID: config.previousResponseID,
		Store:              config.store,
		Temperature:        config.temperature,
	}
	var system []string
	for _, msg := range messages {
		if msg.Role == RoleSystem && msg.FunctionCall == nil && msg.FunctionCallOutput == nil {
			system = append(system, msg.Content.Text())
			continue
		}
		var input openai_Message
		if err := input.from(msg); err != nil {
			return nil, fmt.Errorf("error converting message: %w", err)
		}
		payload.Input = append(payload.Input, input)
	}
	if payload.Instructions == "" && len(system) > 0 {
		payload.Instructions = strings.Join(system, "\n\n")
	}
	for _, tool := range tools.Tools() {
		schema := tool.Schema()
		payload.Tools = append(payload.Tools, openai_Request_FunctionTool{
			Type:        "function",
			Name:        schema.Name,
			Description: schema.Description,
			Parameters:  schema.Parameters,
			Strict:      schema.Strict,
		})
	}
	for _, tool := range tools.Hosted() {
		payload.Tools = append(payload.Tools, tool.definition())
	}
	return payload, nil
}

func (o *OpenAI) apiError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	if gjson.ValidBytes(body) {
		e := gjson.GetBytes(body, "error")
		apiErr.Type = e.Get("type").String()
		apiErr.Code = e.Get("code").String()
		apiErr.Param = e.Get("param").String()
		apiErr.Message = e.Get("message").String()
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	o.logger.Error("OpenAI request failed: %v", apiErr)
	return apiErr
}

func (o *OpenAI) parse(body []byte) (*Response, error) {
	var raw openai_Response
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &ParseError{What: "response body", Input: string(body), Err: err}
	}
	if raw.Error != nil && raw.Error.Message != "" {
		return nil, &APIError{
			StatusCode: http.StatusOK,
			Code:       raw.Error.Code,
			Message:    raw.Error.Message,
		}
	}
	response := &Response{
		ID:     raw.ID,
		Model:  raw.Model,
		Status: raw.Status,
		Output: make([]OutputItem, 0, len(raw.Output)),
	}
	for _, item := range raw.Output {
		parsed, err := parseOutputItem(item)
		if err != nil {
			return nil, err
		}
		response.Output = append(response.Output, parsed)
	}
	if text := gjson.GetBytes(body, "output_text"); text.Exists() {
		response.OutputText = text.String()
	} else {
		response.OutputText = response.text()
	}
	if raw.Usage != nil {
		response.Usage = Usage{
			PromptTokens:     raw.Usage.InputTokens,
			CachedTokens:     raw.Usage.InputTokensDetails.CachedTokens,
			CompletionTokens: raw.Usage.OutputTokens,
			TotalCost:        o.estimateCost(*raw.Usage),
		}
	}
	return response, nil
}

func parseOutputItem(item json.RawMessage) (OutputItem, error) {
	itemType := OutputItemType(gjson.GetBytes(item, "type").String())
	switch itemType {
	case OutputItemMessage:
		var v openai_OutputMessage
		if err := json.Unmarshal(item, &v); err != nil {
			return OutputItem{}, &ParseError{What: "output message", Input: string(item), Err: err}
		}
		msg := &OutputMessage{ID: v.ID, Role: Role(v.Role)}
		for _, content := range v.Content {
			if content.Type != "output_text" {
				continue
			}
			msg.Content.AppendText(content.Text)
			for _, a := range content.Annotations {
				if a.Type != "url_citation" {
					continue
				}
				msg.Citations = append(msg.Citations, Citation{
					Title:      a.Title,
					URL:        a.URL,
					StartIndex: a.StartIndex,
					EndIndex:   a.EndIndex,
				})
			}
		}
		return OutputItem{Type: itemType, Message: msg, Raw: item}, nil
	case OutputItemFunctionCall:
		var v openai_FunctionToolCall
		if err := json.Unmarshal(item, &v); err != nil {
			return OutputItem{}, &ParseError{What: "function call", Input: string(item), Err: err}
		}
		return OutputItem{Type: itemType, FunctionCall: &FunctionCall{
			ID:        v.ID,
			CallID:    v.CallID,
			Name:      v.Name,
			Arguments: v.Arguments,
		}, Raw: item}, nil
	case OutputItemWebSearchCall:
		return OutputItem{Type: itemType, WebSearchCall: &WebSearchCall{
			ID:     gjson.GetBytes(item, "id").String(),
			Status: gjson.GetBytes(item, "status").String(),
			Query:  gjson.GetBytes(item, "action.query").String(),
		}, Raw: item}, nil
	default:
		return OutputItem{Type: itemType, Raw: item}, nil
	}
}

func (o *OpenAI) estimateCost(usage openai_Usage) float64 {
	type costConfig struct {
		inputTokens  float64
		cachedTokens float64
		outputTokens float64
	}
	costs := map[string]costConfig{
		"gpt-4.1":      {inputTokens: 2.0, cachedTokens: 0.5, outputTokens: 8.0},
		"gpt-4.1-mini": {inputTokens: 0.4, cachedTokens: 0.1, outputTokens: 1.6},
		"gpt-4.1-nano": {inputTokens: 0.1, cachedTokens: 0.025, outputTokens: 0.4},
		"gpt-4o":       {inputTokens: 2.5, cachedTokens: 1.25, outputTokens: 10.0},
		"gpt-4o-mini":  {inputTokens: 0.15, cachedTokens: 0.075, outputTokens: 0.6},
		"o3":           {inputTokens: 2.0, cachedTokens: 0.5, outputTokens: 8.0},
		"o4-mini":      {inputTokens: 1.1, cachedTokens: 0.275, outputTokens: 4.4},
	}
	var cost *costConfig
	if c, ok := costs[o.model]; ok {
		cost = &c
	} else {
		o.logger.Error("no cost information available for model %s, using intentionally high default values", o.model)
		cost = &costConfig{
			inputTokens:  10 * costs["gpt-4.1"].inputTokens,
			cachedTokens: 10 * costs["gpt-4.1"].cachedTokens,
			outputTokens: 10 * costs["gpt-4.1"].outputTokens,
		}
	}
	cached := usage.InputTokensDetails.CachedTokens
	millionInputTokens := float64(usage.InputTokens-cached) / 1000000.0
	millionCachedTokens := float64(cached) / 1000000.0
	millionOutputTokens := float64(usage.OutputTokens) / 1000000.0
	total := millionInputTokens*cost.inputTokens +
		millionCachedTokens*cost.cachedTokens +
		millionOutputTokens*cost.outputTokens
	o.logger.Debug("OpenAI cost estimate: $%.6f (%d input, %d cached, %d output tokens)",
		total, usage.InputTokens, cached, usage.OutputTokens)
	return total
}

// helper types ------------------------------------------------------------------------------------

// messages
type openai_InputMessage_ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
type openai_InputMessage struct {
	Role    string                            `json:"role"`
	Content []openai_InputMessage_ContentItem `json:"content"`
}

type openai_OutputMessage_Annotation struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
}
type openai_OutputMessage_ContentItem struct {
	Type        string                            `json:"type"`
	Text        string                            `json:"text"`
	Annotations []openai_OutputMessage_Annotation `json:"annotations"`
}
type openai_OutputMessage struct {
	ID      string                             `json:"id"`
	Type    string                             `json:"type"`
	Role    string                             `json:"role"`
	Status  string                             `json:"status"`
	Content []openai_OutputMessage_ContentItem `json:"content"`
}

type openai_FunctionToolCall struct {
	ID        string `json:"id,omitzero"`
	Arguments string `json:"arguments"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
}

type openai_FunctionToolCallOutput struct {
	CallID string `json:"call_id"`
	Output string `json:"output"`
	Type   string `json:"type"`
}

type openai_Message struct {
	v any
}

func (m openai_Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.v)
}

func (m *openai_Message) from(msg Message) error {
	if msg.FunctionCall != nil {
		m.v = openai_FunctionToolCall{
			Arguments: msg.FunctionCall.Arguments,
			CallID:    msg.FunctionCall.CallID,
			Name:      msg.FunctionCall.Name,
			Type:      "function_call",
		}
		return nil
	}
	if msg.FunctionCallOutput != nil {
		m.v = openai_FunctionToolCallOutput{
			CallID: msg.FunctionCallOutput.CallID,
			Output: msg.FunctionCallOutput.Output,
			Type:   "function_call_output",
		}
		return nil
	}
	switch msg.Role {
	case RoleAssistant:
		var v openai_OutputMessage
		v.ID = msg.ID
		if v.ID == "" {
			// only messages built without NewAssistantMessage get here
			v.ID = generateMsgID()
		}
		v.Type = "message"
		v.Role = "assistant"
		v.Status = "completed"
		for _, part := range msg.Content {
			switch p := part.(type) {
			case TextContentPart:
				v.Content = append(v.Content, openai_OutputMessage_ContentItem{
					Type:        "output_text",
					Text:        p.Text,
					Annotations: []openai_OutputMessage_Annotation{},
				})
			}
		}
		m.v = v
	case RoleUser, RoleSystem:
		var v openai_InputMessage
		v.Role = string(msg.Role)
		for _, part := range msg.Content {
			switch p := part.(type) {
			case TextContentPart:
				v.Content = append(v.Content, openai_InputMessage_ContentItem{
					Type: "input_text",
					Text: p.Text,
				})
			}
		}
		m.v = v
	default:
		return fmt.Errorf("unexpected message role: %q", msg.Role)
	}
	return nil
}

// requests
type openai_Request_FunctionTool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
	Strict      bool            `json:"strict"`
}
type openai_Request_WebSearchTool_Location struct {
	Type     string `json:"type"`
	City     string `json:"city,omitzero"`
	Country  string `json:"country,omitzero"`
	Region   string `json:"region,omitzero"`
	Timezone string `json:"timezone,omitzero"`
}
type openai_Request_WebSearchTool struct {
	Type              string                                 `json:"type"`
	SearchContextSize string                                 `json:"search_context_size,omitzero"`
	UserLocation      *openai_Request_WebSearchTool_Location `json:"user_location,omitzero"`
}
type openai_Request struct {
	Input              []openai_Message `json:"input"`
	Instructions       string           `json:"instructions,omitzero"`
	MaxOutputTokens    int              `json:"max_output_tokens,omitzero"`
	Model              string           `json:"model"`
	PreviousResponseID string           `json:"previous_response_id,omitzero"`
	Store              bool             `json:"store"`
	Temperature        *float64         `json:"temperature,omitzero"`
	Tools              []any            `json:"tools,omitzero"`
}

// responses
type openai_Usage_InputTokensDetails struct {
	CachedTokens int `json:"cached_tokens"`
}
type openai_Usage_OutputTokensDetails struct {
	ReasoningTokens int `json:"reasoning_tokens"`
}
type openai_Usage struct {
	InputTokens         int                              `json:"input_tokens"`
	InputTokensDetails  openai_Usage_InputTokensDetails  `json:"input_tokens_details"`
	OutputTokens        int                              `json:"output_tokens"`
	OutputTokensDetails openai_Usage_OutputTokensDetails `json:"output_tokens_details"`
	TotalTokens         int                              `json:"total_tokens"`
}

type openai_Response_Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type openai_Response struct {
	ID     string                 `json:"id"`
	Model  string                 `json:"model"`
	Status string                 `json:"status"`
	Error  *openai_Response_Error `json:"error"`
	Output []json.RawMessage      `json:"output"`
	Usage  *openai_Usage          `json:"usage"`
}
