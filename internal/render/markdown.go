// Package render turns post Markdown into HTML for the reading view.
package render

import (
	"strings"

	"github.com/russross/blackfriday/v2"
)

const extensions = blackfriday.CommonExtensions | blackfriday.FencedCode | blackfriday.Tables

// Markdown renders src as HTML with fenced code blocks and tables enabled.
// The output is not sanitized.
func Markdown(src string) string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	return string(blackfriday.Run([]byte(src), blackfriday.WithExtensions(extensions)))
}
