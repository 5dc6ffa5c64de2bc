// Package bot holds the chat-facing texts, keyboards and MarkdownV2 helpers.
package bot

import "strings"

// Format selects how the chat client renders a message.
type Format int

const (
	Plain Format = iota
	MarkdownV2
)

func (f Format) String() string {
	if f == MarkdownV2 {
		return "MarkdownV2"
	}
	return "Plain"
}

// markdownV2Special lists every character Telegram reserves in MarkdownV2,
// the backslash included.
const markdownV2Special = "\\_*[]()~`>#+-=|{}.!"

// EscapeMarkdownV2 prefixes each reserved character of s with a backslash
// so s renders literally.
func EscapeMarkdownV2(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/4)
	for _, r := range s {
		if strings.ContainsRune(markdownV2Special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// UnescapeMarkdownV2 reverses EscapeMarkdownV2.
func UnescapeMarkdownV2(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	escaped := false
	for _, r := range s {
		if !escaped && r == '\\' {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}
