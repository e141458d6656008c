// Package format holds text helpers for Telegram HTML messages.
package format

import "strings"

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// EscapeHTML escapes the three characters Telegram's HTML parse mode reserves.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// Bold wraps already escaped text in <b>.
func Bold(s string) string {
	return "<b>" + s + "</b>"
}
