package llm

import (
	"math/rand"
	"strings"
	"time"
)

// messages ----------------------------------------------------------------------------------------

type Role string

const (
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
)

type ContentPart any

type TextContentPart struct {
	Type string
	Text string
}

func NewTextContentPart(text string) TextContentPart {
	return TextContentPart{Type: "text", Text: text}
}

type ContentParts []ContentPart

func (c *ContentParts) AppendText(text string) {
	if c == nil {
		return
	}
	if len(*c) == 0 {
		*c = append(*c, NewTextContentPart(text))
	} else if p, ok := (*c)[len(*c)-1].(TextContentPart); ok {
		p.Text += text
		(*c)[len(*c)-1] = p
	} else {
		*c = append(*c, NewTextContentPart(text))
	}
}

func (c ContentParts) Text() string {
	var sb strings.Builder
	for _, part := range c {
		switch p := part.(type) {
		case TextContentPart:
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// FunctionCall is a request from the model to run a local function. CallID is issued by the API
// and must be echoed back verbatim on the matching output.
type FunctionCall struct {
	ID        string
	CallID    string
	Name      string
	Arguments string
}

type FunctionCallOutput struct {
	CallID string
	Output string
}

// Message is one entry of the conversation history. Exactly one of Content, FunctionCall and
// FunctionCallOutput is meaningful for a given message.
type Message struct {
	// ID identifies an assistant message item. It is sent back unchanged on every request.
	ID                 string
	Role               Role
	Content            ContentParts
	FunctionCall       *FunctionCall
	FunctionCallOutput *FunctionCallOutput
}

func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: ContentParts{NewTextContentPart(text)}}
}

func NewAssistantMessage(text string) Message {
	return Message{ID: generateMsgID(), Role: RoleAssistant, Content: ContentParts{NewTextContentPart(text)}}
}

func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: ContentParts{NewTextContentPart(text)}}
}

func NewFunctionCallMessage(call FunctionCall) Message {
	return Message{Role: RoleAssistant, FunctionCall: &call}
}

func NewFunctionCallOutputMessage(output FunctionCallOutput) Message {
	return Message{FunctionCallOutput: &output}
}

// usage -------------------------------------------------------------------------------------------

type Usage struct {
	PromptTokens     int
	CachedTokens     int
	CompletionTokens int
	TotalCost        float64
}

func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CachedTokens:     u.CachedTokens + other.CachedTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalCost:        u.TotalCost + other.TotalCost,
	}
}

// request options ---------------------------------------------------------------------------------

type requestConfig struct {
	instructions       string
	maxOutputTokens    int
	previousResponseID string
	store              bool
	temperature        *float64
}

type RequestOption func(*requestConfig)

func WithInstructions(instructions string) RequestOption {
	return func(c *requestConfig) { c.instructions = instructions }
}
func WithMaxOutputTokens(maxTokens int) RequestOption {
	return func(c *requestConfig) { c.maxOutputTokens = maxTokens }
}

// WithPreviousResponseID continues a stored conversation by reference instead of resending it.
// It only works when the referenced response was created with WithStore(true).
func WithPreviousResponseID(id string) RequestOption {
	return func(c *requestConfig) { c.previousResponseID = id }
}
func WithStore(store bool) RequestOption {
	return func(c *requestConfig) { c.store = store }
}
func WithTemperature(temperature float64) RequestOption {
	return func(c *requestConfig) { c.temperature = &temperature }
}

// utility functions -------------------------------------------------------------------------------

func generateMsgID() string {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	const charset = "0123456789abcdef"
	result := make([]byte, 48)
	for i := range result {
		result[i] = charset[r.Intn(len(charset))]
	}
	return "msg_" + string(result)
}
