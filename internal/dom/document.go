package dom

import (
	"fmt"
	"io"
	"sync"

	"golang.org/x/net/html"
)

// Placeholder data attributes consumed from the host document.
const (
	AttrSlotID = "data-slot_id"
	AttrWidth  = "data-width"
	AttrHeight = "data-height"
)

// Placeholder is one declared ad slot region of the host document. The
// engine fully owns its inner content: whatever the host declared inside is
// replaced by the rendered creative or a placeholder state.
type Placeholder struct {
	SlotID string
	Width  string
	Height string

	node *html.Node

	mu      sync.Mutex
	content *Element
}

// SetContent replaces the placeholder's owned content tree.
func (p *Placeholder) SetContent(el *Element) {
	p.mu.Lock()
	p.content = el
	p.mu.Unlock()
}

// Content returns the placeholder's current content tree, or nil.
func (p *Placeholder) Content() *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.content
}

// Document wraps a parsed host HTML document and its declared placeholders.
type Document struct {
	root         *html.Node
	placeholders []*Placeholder
}

// ParseDocument parses a host HTML document and discovers every element
// carrying a data-slot_id attribute. Elements without the attribute are left
// untouched.
func ParseDocument(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	doc := &Document{root: root}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if slotID, ok := attr(n, AttrSlotID); ok {
				width, _ := attr(n, AttrWidth)
				height, _ := attr(n, AttrHeight)
				doc.placeholders = append(doc.placeholders, &Placeholder{
					SlotID: slotID,
					Width:  width,
					Height: height,
					node:   n,
				})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return doc, nil
}

// Placeholders returns the declared placeholders in document order.
func (d *Document) Placeholders() []*Placeholder {
	return d.placeholders
}

// Render serializes the document, substituting each placeholder's declared
// inner content with its engine-owned content tree.
func (d *Document) Render(w io.Writer) error {
	for _, p := range d.placeholders {
		el := p.Content()
		if el == nil {
			continue
		}
		for c := p.node.FirstChild; c != nil; {
			next := c.NextSibling
			p.node.RemoveChild(c)
			c = next
		}
		p.node.AppendChild(el.toNode())
	}
	if err := html.Render(w, d.root); err != nil {
		return fmt.Errorf("render document: %w", err)
	}
	return nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
