package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func sseHandler(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "data: %s\n\n", line)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

func testClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		Model:      "test-model",
		Type:       ModelTypeOpenAI,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestChatStream_TextDeltas(t *testing.T) {
	srv := httptest.NewServer(sseHandler(
		`{"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
	))
	defer srv.Close()

	stream, err := testClient(srv.URL).ChatStream(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer stream.Close()

	var text, finish string
	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		text += ev.Text
		if ev.FinishReason != "" {
			finish = ev.FinishReason
		}
	}
	if text != "Hello" {
		t.Fatalf("expected accumulated text Hello, got %q", text)
	}
	if finish != "stop" {
		t.Fatalf("expected finish reason stop, got %q", finish)
	}
}

func TestChatStream_ToolCallFragments(t *testing.T) {
	srv := httptest.NewServer(sseHandler(
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"suggest_command","arguments":""}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"command\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"ls\"}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
	))
	defer srv.Close()

	stream, err := testClient(srv.URL).ChatStream(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer stream.Close()

	var (
		id, name, args string
	)
	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		for _, delta := range ev.ToolCallDeltas {
			if delta.ID != "" {
				id = delta.ID
			}
			if delta.Name != "" {
				name = delta.Name
			}
			args += delta.ArgumentsFragment
		}
	}
	if id != "call_1" || name != "suggest_command" {
		t.Fatalf("unexpected tool call identity: %q %q", id, name)
	}
	if args != `{"command":"ls"}` {
		t.Fatalf("fragments did not reassemble: %q", args)
	}
}

func TestChatStream_HTTPErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).ChatStream(context.Background(), ChatRequest{})
	if err == nil {
		t.Fatalf("expected error on 401")
	}
	if !IsLikelyAuthErrorText(err.Error()) {
		t.Fatalf("expected auth-class error, got %v", err)
	}
}

func TestChatStream_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(sseHandler(
		`{"error":{"message":"server exploded"}}`,
	))
	defer srv.Close()

	stream, err := testClient(srv.URL).ChatStream(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer stream.Close()

	_, err = stream.Recv()
	if err == nil || err == io.EOF {
		t.Fatalf("expected error envelope surfaced, got %v", err)
	}
}

func TestChatStream_SetsAuthAndStreamFlag(t *testing.T) {
	var gotAuth string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		sseHandler()(w, r)
	}))
	defer srv.Close()

	stream, err := testClient(srv.URL).ChatStream(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	stream.Close()

	if gotAuth != "Bearer test-key" {
		t.Fatalf("missing bearer auth, got %q", gotAuth)
	}
	if body := string(gotBody); !strings.Contains(body, `"stream":true`) {
		t.Fatalf("expected stream flag in request body: %s", body)
	}
}

func TestParseModelType(t *testing.T) {
	cases := []struct {
		raw  string
		want ModelType
		ok   bool
	}{
		{"", ModelTypeOpenAI, true},
		{"openai", ModelTypeOpenAI, true},
		{"anthropics", ModelTypeAnthropics, true},
		{"anthropic", ModelTypeAnthropics, true},
		{"Anthropics", ModelTypeAnthropics, true},
		{"gemini", "", false},
	}
	for _, tc := range cases {
		got, err := ParseModelType(tc.raw)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("ParseModelType(%q) = %v, %v", tc.raw, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseModelType(%q) should fail", tc.raw)
		}
	}
}
