package ui

import "github.com/atotto/clipboard"

// clipboardBuffer degrades to an in-process buffer when the host system
// clipboard is unavailable (headless sessions, missing xclip).
type clipboardBuffer struct {
	fallback string
}

func (c *clipboardBuffer) Copy(text string) {
	c.fallback = text
	_ = clipboard.WriteAll(text)
}

func (c *clipboardBuffer) Paste() string {
	if text, err := clipboard.ReadAll(); err == nil && text != "" {
		return text
	}
	return c.fallback
}
