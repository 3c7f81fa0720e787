// Package llm speaks to streaming chat-completion providers. The OpenAI-
// compatible path is a plain HTTP client with server-sent-event parsing; the
// Anthropic path goes through the official SDK. Both yield the same Stream of
// text and tool-call deltas.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	Type       ModelType
	MaxTokens  int
	HTTPClient *http.Client

	anthropicSDK anthropic.Client
}

type Config struct {
	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url"`
	Model     string `json:"model"`
	ModelType string `json:"model_type"`
	MaxTokens int    `json:"max_tokens"`
}

// DefaultConfigPath is where LoadConfig looks when no --config is given.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "aiterm", "config.json")
}

// LoadConfig reads the optional JSON config file. A missing file is not an
// error; environment variables fill the gaps.
func LoadConfig(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// NewClient builds a client from the config file values, with environment
// variables filling the API key, base URL, and model when the file leaves them
// empty. AITERM_MODEL_TYPE and OPENAI_MAX_TOKENS override the file. The API
// key is required and named after the provider.
func NewClient(cfg Config) (*Client, error) {
	modelType, err := ParseModelType(firstNonEmpty(os.Getenv("AITERM_MODEL_TYPE"), cfg.ModelType))
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		switch modelType {
		case ModelTypeAnthropics:
			apiKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
			if apiKey == "" {
				return nil, errors.New("ANTHROPIC_API_KEY is required (or api_key in config.json)")
			}
		default:
			apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
			if apiKey == "" {
				return nil, errors.New("OPENAI_API_KEY is required (or api_key in config.json)")
			}
		}
	}

	baseURL := firstNonEmpty(cfg.BaseURL, os.Getenv("OPENAI_BASE_URL"))
	if baseURL == "" && modelType == ModelTypeOpenAI {
		baseURL = "https://api.openai.com"
	}

	model := firstNonEmpty(cfg.Model, os.Getenv("OPENAI_MODEL"))
	if model == "" {
		switch modelType {
		case ModelTypeAnthropics:
			model = "claude-sonnet-4-5"
		default:
			model = "gpt-4o-mini"
		}
	}

	maxTokens := cfg.MaxTokens
	if raw := strings.TrimSpace(os.Getenv("OPENAI_MAX_TOKENS")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			maxTokens = v
		}
	}

	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		APIKey:    apiKey,
		Model:     model,
		Type:      modelType,
		MaxTokens: maxTokens,
		HTTPClient: &http.Client{
			Timeout: 300 * time.Second,
		},
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// ChatStream opens a streaming completion and returns the delta stream.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest) (Stream, error) {
	if c == nil {
		return nil, errors.New("nil client")
	}
	if req.Model == "" {
		req.Model = c.Model
	}
	if req.MaxTokens <= 0 && c.MaxTokens > 0 {
		req.MaxTokens = c.MaxTokens
	}
	if c.Type == ModelTypeAnthropics {
		return c.chatStreamAnthropics(ctx, req)
	}
	return c.chatStreamOpenAI(ctx, req)
}

func (c *Client) chatStreamOpenAI(ctx context.Context, req ChatRequest) (Stream, error) {
	req.Stream = true
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("chat api error: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseStream{body: resp.Body, scanner: sc}, nil
}

// sseStream parses "data: {json}" lines from an OpenAI-compatible endpoint.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

type sseChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *sseStream) Recv() (StreamEvent, error) {
	if s.done {
		return StreamEvent{}, io.EOF
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "[DONE]" {
			s.done = true
			return StreamEvent{}, io.EOF
		}

		var chunk sseChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return StreamEvent{}, fmt.Errorf("decode stream chunk: %w", err)
		}
		if chunk.Error != nil {
			s.done = true
			return StreamEvent{}, fmt.Errorf("stream error: %s", chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		ev := StreamEvent{
			Text:         choice.Delta.Content,
			FinishReason: choice.FinishReason,
		}
		for _, tc := range choice.Delta.ToolCalls {
			ev.ToolCallDeltas = append(ev.ToolCallDeltas, ToolCallDelta{
				Index:             tc.Index,
				ID:                tc.ID,
				Name:              tc.Function.Name,
				ArgumentsFragment: tc.Function.Arguments,
			})
		}
		return ev, nil
	}
	if err := s.scanner.Err(); err != nil {
		return StreamEvent{}, fmt.Errorf("read stream: %w", err)
	}
	s.done = true
	return StreamEvent{}, io.EOF
}

func (s *sseStream) Close() error {
	s.done = true
	return s.body.Close()
}
