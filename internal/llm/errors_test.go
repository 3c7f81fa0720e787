package llm

import (
	"errors"
	"testing"
)

func TestIsLikelyContextOverflowText(t *testing.T) {
	cases := []struct {
		name string
		msg  string
		want bool
	}{
		{
			name: "explicit_max_context",
			msg:  "This model's maximum context length is 8192 tokens. However, you requested 9000 tokens.",
			want: true,
		},
		{
			name: "context_length_exceeded",
			msg:  "context length exceeded",
			want: true,
		},
		{
			name: "request_too_large",
			msg:  "request_too_large: context window exceeded",
			want: true,
		},
		{
			name: "prompt_too_long",
			msg:  "prompt is too long: 210000 tokens > 200000 maximum",
			want: true,
		},
		{
			name: "context_window_too_small_not_overflow",
			msg:  "context window too small; minimum is 1024 tokens",
			want: false,
		},
		{
			name: "rate_limit_not_overflow",
			msg:  "request reached organization TPD rate limit",
			want: false,
		},
		{
			name: "empty",
			msg:  "",
			want: false,
		},
	}
	for _, tc := range cases {
		if got := IsLikelyContextOverflowText(tc.msg); got != tc.want {
			t.Fatalf("%s: IsLikelyContextOverflowText(%q) = %v, want %v", tc.name, tc.msg, got, tc.want)
		}
	}
}

func TestIsLikelyRateLimitText(t *testing.T) {
	if !IsLikelyRateLimitText("429 Too Many Requests") {
		t.Fatalf("expected 429 classified as rate limit")
	}
	if !IsLikelyRateLimitText("rate limit exceeded, retry later") {
		t.Fatalf("expected rate limit text classified")
	}
	if IsLikelyRateLimitText("connection refused") {
		t.Fatalf("network errors are not rate limits")
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.New("rate limit exceeded"), "rate limited"},
		{errors.New("401 Unauthorized: invalid x-api-key"), "auth failed"},
		{errors.New("context length exceeded"), "context too long"},
		{errors.New("connection reset by peer"), "request failed"},
	}
	for _, tc := range cases {
		if got := ClassifyError(tc.err); got != tc.want {
			t.Fatalf("ClassifyError(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestClassifyErrorText(t *testing.T) {
	if got := ClassifyErrorText("429 Too Many Requests"); got != "rate limited" {
		t.Fatalf("ClassifyErrorText = %q, want %q", got, "rate limited")
	}
	if got := ClassifyErrorText("  "); got != "" {
		t.Fatalf("blank text must classify to empty, got %q", got)
	}
}
