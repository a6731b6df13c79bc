package content

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

const MaxMessageLen = 4000

var (
	policy = bluemonday.UGCPolicy()
	md     = goldmark.New()
)

// Sanitize removes unsafe HTML from the input string using a strict policy.
// It is applied to user-entered text (comments, chat messages) before it is
// handed to the view layer.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// RenderMarkdown converts a post body from markdown to HTML and sanitizes
// the result. On conversion failure the escaped plain text is returned so
// the post still renders.
func RenderMarkdown(body string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(body), &buf); err != nil {
		return policy.Sanitize(body)
	}
	return policy.Sanitize(buf.String())
}

// ValidateMessage checks that a chat message or comment body is non-empty
// after trimming and within the length limit.
func ValidateMessage(body string) error {
	if strings.TrimSpace(body) == "" {
		return errors.New("message cannot be empty")
	}
	if utf8.RuneCountInString(body) > MaxMessageLen {
		return fmt.Errorf("message exceeds %d characters", MaxMessageLen)
	}
	return nil
}
