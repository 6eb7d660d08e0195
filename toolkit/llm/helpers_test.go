package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/markusylisiurunen/roundtrip/internal/logger"
)

// fakeAPI serves queued Responses API bodies and records every request body it receives.
type fakeAPI struct {
	mux      sync.Mutex
	server   *httptest.Server
	replies  []fakeReply
	requests []json.RawMessage
	headers  []http.Header
}

type fakeReply struct {
	status int
	body   string
}

func newFakeAPI(t *testing.T, replies ...fakeReply) *fakeAPI {
	t.Helper()
	f := &fakeAPI{replies: replies}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func ok(body string) fakeReply { return fakeReply{status: http.StatusOK, body: body} }

func (f *fakeAPI) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mux.Lock()
	f.requests = append(f.requests, json.RawMessage(body))
	f.headers = append(f.headers, r.Header.Clone())
	var reply fakeReply
	if len(f.replies) > 0 {
		reply, f.replies = f.replies[0], f.replies[1:]
	} else {
		reply = fakeReply{status: http.StatusInternalServerError, body: `{"error":{"message":"no reply queued"}}`}
	}
	f.mux.Unlock()
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(reply.status)
	_, _ = w.Write([]byte(reply.body))
}

func (f *fakeAPI) client(model string) *OpenAI {
	return NewOpenAI(logger.NoOp(), "test-key", model, WithBaseURL(f.server.URL), WithHTTPClient(f.server.Client()))
}

func (f *fakeAPI) request(i int) json.RawMessage {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.requests[i]
}

func (f *fakeAPI) count() int {
	f.mux.Lock()
	defer f.mux.Unlock()
	return len(f.requests)
}

// echoTool records its arguments and answers with a fixed output.
type echoTool struct {
	name   string
	output string
	err    error
	args   []string
}

func (e *echoTool) Schema() Schema {
	return Schema{
		Name:        e.name,
		Description: "Echo tool.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`),
		Strict:      true,
	}
}

func (e *echoTool) Call(_ context.Context, args string) (string, error) {
	e.args = append(e.args, args)
	return e.output, e.err
}

const (
	functionCallResponse = `{
		"id": "resp_1",
		"model": "gpt-4.1-2025-04-14",
		"status": "completed",
		"output": [
			{
				"type": "function_call",
				"id": "fc_1",
				"call_id": "call_12345xyz",
				"name": "get_weather",
				"arguments": "{\"latitude\":35.682839,\"longitude\":139.759455}",
				"status": "completed"
			}
		],
		"usage": {"input_tokens": 60, "input_tokens_details": {"cached_tokens": 0}, "output_tokens": 20, "total_tokens": 80}
	}`
	finalAnswerResponse = `{
		"id": "resp_2",
		"model": "gpt-4.1-2025-04-14",
		"status": "completed",
		"output": [
			{
				"type": "message",
				"id": "msg_2",
				"role": "assistant",
				"status": "completed",
				"content": [{"type": "output_text", "text": "It is 20.5°C in Tokyo right now.", "annotations": []}]
			}
		],
		"usage": {"input_tokens": 100, "input_tokens_details": {"cached_tokens": 50}, "output_tokens": 12, "total_tokens": 112}
	}`
)
