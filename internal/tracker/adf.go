package tracker

import (
	"encoding/json"
	"strings"
)

// adfNode is one node of an Atlassian Document Format tree
type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text,omitempty"`
	Content []adfNode `json:"content,omitempty"`
}

// blockTypes end with a line break when flattened
var blockTypes = map[string]bool{
	"paragraph":   true,
	"heading":     true,
	"listItem":    true,
	"codeBlock":   true,
	"blockquote":  true,
	"tableRow":    true,
	"panel":       true,
	"rule":        true,
}

// PlainText flattens a description field into plain text. Jira v3 returns
// ADF documents; older payloads and some proxies return plain strings.
func PlainText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}

	var b strings.Builder
	writeADF(&b, doc)
	return strings.TrimSpace(collapseBlankLines(b.String()))
}

func writeADF(b *strings.Builder, n adfNode) {
	switch n.Type {
	case "text":
		b.WriteString(n.Text)
		return
	case "hardBreak":
		b.WriteString("\n")
		return
	}
	for _, child := range n.Content {
		writeADF(b, child)
	}
	if blockTypes[n.Type] {
		b.WriteString("\n")
	}
}

func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}

// paragraphDoc wraps text in a one-paragraph ADF document
func paragraphDoc(text string) map[string]any {
	return map[string]any{
		"type":    "doc",
		"version": 1,
		"content": []any{
			map[string]any{
				"type": "paragraph",
				"content": []any{
					map[string]any{"type": "text", "text": text},
				},
			},
		},
	}
}
