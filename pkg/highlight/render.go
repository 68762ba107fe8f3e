// Package highlight renders an aligned document as safe, clickable markup
// and owns the "active risk" state of a display session.
package highlight

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/coolbeans/clausemark/pkg/align"
	"github.com/coolbeans/clausemark/pkg/risk"
)

// escaper replaces the five reserved characters. A Replacer scans the input
// once, so "&" produced by a replacement is never escaped again.
var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Escape makes s safe to embed in markup text or attribute values.
func Escape(s string) string {
	return escaper.Replace(s)
}

// NodeKind distinguishes renderable node types.
type NodeKind string

const (
	// NodeText is plain document text.
	NodeText NodeKind = "text"
	// NodeRisk is a highlighted, clickable inline span.
	NodeRisk NodeKind = "risk"
	// NodeBlock is a standalone excerpt block used when the document text is missing.
	NodeBlock NodeKind = "block"
)

// Node is one renderable unit. Text is already escaped.
type Node struct {
	Kind   NodeKind   `json:"kind"`
	Text   string     `json:"text"`
	RiskID int        `json:"riskId,omitempty"`
	Level  risk.Level `json:"riskLevel,omitempty"`
	Active bool       `json:"active,omitempty"`
	DOMID  string     `json:"domId,omitempty"`
}

// DOMID returns the element id used for a risk's highlight.
func DOMID(riskID int) string {
	return "risk-" + strconv.Itoa(riskID)
}

// Render maps segments to nodes. A risk node is active iff its id equals
// activeID; activeID 0 means nothing is active.
func Render(segments []align.Segment, activeID int) []Node {
	nodes := make([]Node, 0, len(segments))
	for _, segment := range segments {
		if segment.IsPlain() {
			nodes = append(nodes, Node{Kind: NodeText, Text: Escape(segment.Text)})
			continue
		}
		nodes = append(nodes, Node{
			Kind:   NodeRisk,
			Text:   Escape(segment.Text),
			RiskID: segment.RiskID,
			Level:  segment.Level,
			Active: activeID != 0 && segment.RiskID == activeID,
			DOMID:  DOMID(segment.RiskID),
		})
	}
	return nodes
}

// RenderFallback renders each record's excerpt as its own clickable block,
// for documents whose full text is unavailable.
func RenderFallback(records []risk.Record, activeID int) []Node {
	nodes := make([]Node, 0, len(records))
	for _, record := range records {
		nodes = append(nodes, Node{
			Kind:   NodeBlock,
			Text:   Escape(record.Text),
			RiskID: record.ID,
			Level:  record.Level,
			Active: activeID != 0 && record.ID == activeID,
			DOMID:  DOMID(record.ID),
		})
	}
	return nodes
}

// HTML assembles nodes into markup using the default class prefix.
func HTML(nodes []Node) string {
	return HTMLWithPrefix(nodes, DefaultClassPrefix)
}

// DefaultClassPrefix prefixes every CSS class the renderer emits.
const DefaultClassPrefix = "risk"

// HTMLWithPrefix assembles nodes into markup. Risk nodes become <mark>
// elements and blocks become <div> elements, both carrying data-risk-id so
// a single delegated click handler can drive selection.
func HTMLWithPrefix(nodes []Node, classPrefix string) string {
	if classPrefix == "" {
		classPrefix = DefaultClassPrefix
	}
	prefix := Escape(classPrefix)

	var htmlBuilder strings.Builder
	for _, node := range nodes {
		switch node.Kind {
		case NodeText:
			htmlBuilder.WriteString(node.Text)
		case NodeRisk:
			htmlBuilder.WriteString(fmt.Sprintf(
				"<mark id=\"%s\" class=\"%s\" data-risk-id=\"%d\" data-risk-level=\"%s\" role=\"button\" tabindex=\"0\">%s</mark>",
				node.DOMID, classes(prefix, "", node), node.RiskID, Escape(string(node.Level)), node.Text))
		case NodeBlock:
			htmlBuilder.WriteString(fmt.Sprintf(
				"<div id=\"%s\" class=\"%s\" data-risk-id=\"%d\" data-risk-level=\"%s\" role=\"button\" tabindex=\"0\">%s</div>\n",
				node.DOMID, classes(prefix, "-block", node), node.RiskID, Escape(string(node.Level)), node.Text))
		}
	}
	return htmlBuilder.String()
}

func classes(prefix, suffix string, node Node) string {
	parts := []string{prefix + suffix, prefix + "-" + Escape(string(node.Level))}
	if node.Active {
		parts = append(parts, "active")
	}
	return strings.Join(parts, " ")
}
