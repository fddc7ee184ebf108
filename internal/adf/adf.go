// Package adf builds and reads the tracker's structured rich-text document format.
//
// Descriptions sent to the v3 REST API must be documents: a tree of typed nodes
// rooted at a "doc" node. Only the node types this application produces are modelled.
package adf

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Node types used by Build.
const (
	TypeDoc        = "doc"
	TypeParagraph  = "paragraph"
	TypeHeading    = "heading"
	TypeBulletList = "bulletList"
	TypeListItem   = "listItem"
	TypeText       = "text"
	TypeHardBreak  = "hardBreak"
)

// AcceptanceCriteriaHeading titles the criteria section of a generated description.
const AcceptanceCriteriaHeading = "Acceptance Criteria"

// Node is one element of a document tree.
type Node struct {
	Type    string         `json:"type"`
	Text    string         `json:"text,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []Node         `json:"content,omitempty"`
}

// Document is the root of a rich-text value.
type Document struct {
	Version int    `json:"version"`
	Type    string `json:"type"`
	Content []Node `json:"content"`
}

// Text returns a text node.
func Text(s string) Node {
	return Node{Type: TypeText, Text: s}
}

// Paragraph returns a paragraph holding s, or an empty paragraph when s is empty.
func Paragraph(s string) Node {
	if s == "" {
		return Node{Type: TypeParagraph}
	}
	return Node{Type: TypeParagraph, Content: []Node{Text(s)}}
}

// Heading returns a heading of the given level.
func Heading(level int, s string) Node {
	return Node{
		Type:    TypeHeading,
		Attrs:   map[string]any{"level": level},
		Content: []Node{Text(s)},
	}
}

// BulletList returns a bullet list with one paragraph per item.
func BulletList(items []string) Node {
	list := Node{Type: TypeBulletList}
	for _, item := range items {
		list.Content = append(list.Content, Node{
			Type:    TypeListItem,
			Content: []Node{Paragraph(item)},
		})
	}
	return list
}

// Build renders a description and its acceptance criteria into a document.
// Blank lines in the description separate paragraphs. The criteria section is
// only emitted when there is at least one criterion.
func Build(description string, criteria []string) Document {
	doc := Document{Version: 1, Type: TypeDoc, Content: []Node{}}

	for _, block := range splitParagraphs(description) {
		doc.Content = append(doc.Content, Paragraph(block))
	}

	var items []string
	for _, c := range criteria {
		if c = strings.TrimSpace(c); c != "" {
			items = append(items, c)
		}
	}
	if len(items) > 0 {
		doc.Content = append(doc.Content, Heading(3, AcceptanceCriteriaHeading), BulletList(items))
	}

	// An empty document is rejected by the tracker.
	if len(doc.Content) == 0 {
		doc.Content = append(doc.Content, Paragraph(""))
	}
	return doc
}

func splitParagraphs(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var blocks []string
	for _, block := range strings.Split(s, "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

// PlainText extracts the text of a document depth-first. Block nodes are
// separated by newlines.
func PlainText(doc Document) string {
	var lines []string
	for _, n := range doc.Content {
		collectBlocks(n, &lines)
	}
	return strings.Join(lines, "\n")
}

func collectBlocks(n Node, lines *[]string) {
	switch n.Type {
	case TypeParagraph, TypeHeading:
		if text := inlineText(n); text != "" {
			*lines = append(*lines, text)
		}
	case TypeText:
		if n.Text != "" {
			*lines = append(*lines, n.Text)
		}
	default:
		for _, child := range n.Content {
			collectBlocks(child, lines)
		}
	}
}

func inlineText(n Node) string {
	var b strings.Builder
	for _, child := range n.Content {
		switch child.Type {
		case TypeText:
			b.WriteString(child.Text)
		case TypeHardBreak:
			b.WriteString("\n")
		default:
			b.WriteString(inlineText(child))
		}
	}
	return b.String()
}

// Decode reads a document from its JSON form. Plain JSON strings are accepted
// too, since older issues may still carry a plain-text description.
func Decode(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("failed to decode text description: %w", err)
		}
		return s, nil
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("failed to decode document: %w", err)
	}
	return PlainText(doc), nil
}
