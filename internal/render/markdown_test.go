package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		contains []string
	}{
		{
			name:     "heading and emphasis",
			src:      "# Title\n\nSome *text*.",
			contains: []string{"<h1>Title</h1>", "<em>text</em>"},
		},
		{
			name:     "fenced code",
			src:      "```go\nfmt.Println(1)\n```\n",
			contains: []string{`<code class="language-go">`, "fmt.Println(1)"},
		},
		{
			name:     "table",
			src:      "| a | b |\n|---|---|\n| 1 | 2 |\n",
			contains: []string{"<table>", "<th>a</th>", "<td>2</td>"},
		},
		{
			name:     "windows line endings",
			src:      "```\r\nx := 1\r\n```\r\n",
			contains: []string{"<pre><code>x := 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Markdown(tt.src)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}
