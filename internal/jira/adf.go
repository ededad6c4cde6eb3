package jira

import (
	"encoding/json"
	"strings"

	gojira "github.com/andygrunwald/go-jira"
)

type searchJQLResult struct {
	Issues []struct {
		Key    string `json:"key"`
		Fields struct {
			Summary     string          `json:"summary"`
			Description json.RawMessage `json:"description"`
			Created     gojira.Time     `json:"created"`
		} `json:"fields"`
	} `json:"issues"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// adfNode es un nodo de Atlassian Document Format, el formato de
// description en la API v3.
type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text,omitempty"`
	Content []adfNode `json:"content,omitempty"`
}

// descriptionText aplana la description a texto plano. Acepta tanto un
// documento ADF como un string.
func descriptionText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}

	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	var b strings.Builder
	doc.writeText(&b)
	return strings.TrimSpace(b.String())
}

func (n adfNode) writeText(b *strings.Builder) {
	switch n.Type {
	case "text":
		b.WriteString(n.Text)
		return
	case "hardBreak":
		b.WriteString("\n")
		return
	case "listItem":
		b.WriteString("- ")
	}
	for _, child := range n.Content {
		child.writeText(b)
	}
	switch n.Type {
	case "paragraph", "heading", "codeBlock", "blockquote":
		b.WriteString("\n")
	}
}
