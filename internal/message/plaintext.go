package message

import (
	"strings"

	"golang.org/x/net/html"
)

// PlainText strips markup from an HTML body, keeping only its text content.
// Input without markup is returned unchanged apart from entity decoding.
func PlainText(body string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(body))
	skip := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a tokenizer error; either way the text so far is the result.
			return b.String()
		case html.StartTagToken:
			name, _ := z.TagName()
			if isRawTextTag(string(name)) {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if isRawTextTag(string(name)) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// script and style contents are not human-readable text.
func isRawTextTag(name string) bool {
	return name == "script" || name == "style"
}
