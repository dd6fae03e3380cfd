// Package ingest turns annotated HTML documents into corpus segments.
//
// A segment is every <p> element, or any element carrying a data-segment
// attribute. Entity occurrences are marked with spans:
//
//	<p><span data-kind="person" data-key="alice">Alice</span> works at
//	<span data-kind="org" data-key="acme">Acme</span>.</p>
//
// Text is tokenized on whitespace.
package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/net/html"

	"github.com/ppiankov/seedloop/internal/corpus"
	"github.com/ppiankov/seedloop/internal/model"
)

const (
	attrSegment = "data-segment"
	attrKind    = "data-kind"
	attrKey     = "data-key"
)

// Parser extracts segments from annotated HTML
type Parser struct{}

// NewParser creates a new parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads an annotated HTML document. Segment IDs are "<document>#<n>"
// where n counts non-empty segments from zero.
func (p *Parser) Parse(r io.Reader, document string) ([]*corpus.Segment, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", document)
	}

	var segments []*corpus.Segment
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isSkipped(n) {
			return
		}
		if n.Type == html.ElementNode && isSegment(n) {
			seg := &corpus.Segment{Document: document}
			collect(n, seg)
			if len(seg.Tokens) > 0 {
				seg.Position = len(segments)
				seg.ID = model.SegmentID(fmt.Sprintf("%s#%d", document, seg.Position))
				segments = append(segments, seg)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return segments, nil
}

// ParseString is Parse over an in-memory document
func (p *Parser) ParseString(content, document string) ([]*corpus.Segment, error) {
	return p.Parse(strings.NewReader(content), document)
}

// collect appends the tokens and occurrences under n to seg. Nested
// segment markers are flattened into the outer segment.
func collect(n *html.Node, seg *corpus.Segment) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			seg.Tokens = append(seg.Tokens, strings.Fields(c.Data)...)
		case html.ElementNode:
			if isSkipped(c) {
				continue
			}
			kind, key, ok := entityAttrs(c)
			if !ok {
				collect(c, seg)
				continue
			}
			words := strings.Fields(textContent(c))
			if len(words) == 0 {
				continue
			}
			if key == "" {
				key = strings.ToLower(strings.Join(words, "_"))
			}
			start := len(seg.Tokens)
			seg.Tokens = append(seg.Tokens, words...)
			seg.Occurrences = append(seg.Occurrences, corpus.Occurrence{
				Entity: model.Entity{Kind: kind, Key: key},
				Start:  start,
				End:    len(seg.Tokens),
			})
		}
	}
}

func isSegment(n *html.Node) bool {
	if n.Data == "p" {
		return true
	}
	_, ok := attr(n, attrSegment)
	return ok
}

func isSkipped(n *html.Node) bool {
	switch n.Data {
	case "script", "style", "noscript", "template":
		return true
	}
	return false
}

func entityAttrs(n *html.Node) (kind, key string, ok bool) {
	kind, ok = attr(n, attrKind)
	kind = strings.TrimSpace(kind)
	if !ok || kind == "" {
		return "", "", false
	}
	key, _ = attr(n, attrKey)
	return kind, strings.TrimSpace(key), true
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		if n.Type == html.ElementNode && isSkipped(n) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
