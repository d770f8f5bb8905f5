package dom

import (
	"sort"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Event names the engine binds listeners for. The host delivers these
// through Dispatch when the corresponding page event occurs.
const (
	EventLoad       = "load"
	EventLoadedData = "loadeddata"
	EventError      = "error"
	EventClick      = "click"
)

// Element is one node of the engine-owned content tree built into a
// placeholder. It stands in for a live DOM element: attributes, children and
// an event listener registry. Each element is owned by a single slot
// pipeline; the mutex covers host-driven event dispatch racing the pipeline.
type Element struct {
	Tag string

	mu        sync.Mutex
	text      string
	attrs     map[string]string
	children  []*Element
	listeners map[string][]func()
}

// NewElement creates an element with the given tag.
func NewElement(tag string) *Element {
	return &Element{
		Tag:       tag,
		attrs:     make(map[string]string),
		listeners: make(map[string][]func()),
	}
}

// SetAttr sets an attribute and returns the element for chaining.
func (e *Element) SetAttr(key, value string) *Element {
	e.mu.Lock()
	e.attrs[key] = value
	e.mu.Unlock()
	return e
}

// Attr returns the attribute value, or the empty string when unset.
func (e *Element) Attr(key string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attrs[key]
}

// SetText sets the element's text content.
func (e *Element) SetText(text string) *Element {
	e.mu.Lock()
	e.text = text
	e.mu.Unlock()
	return e
}

// Text returns the element's text content.
func (e *Element) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text
}

// AppendChild appends a child element.
func (e *Element) AppendChild(child *Element) *Element {
	e.mu.Lock()
	e.children = append(e.children, child)
	e.mu.Unlock()
	return e
}

// Children returns a snapshot of the element's children.
func (e *Element) Children() []*Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Element, len(e.children))
	copy(out, e.children)
	return out
}

// On registers a listener for the named event.
func (e *Element) On(event string, fn func()) {
	e.mu.Lock()
	e.listeners[event] = append(e.listeners[event], fn)
	e.mu.Unlock()
}

// Dispatch runs every listener registered for the named event, in
// registration order. The host calls this when the corresponding page event
// fires on the element.
func (e *Element) Dispatch(event string) {
	e.mu.Lock()
	fns := make([]func(), len(e.listeners[event]))
	copy(fns, e.listeners[event])
	e.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Find returns the first element in the subtree (depth-first, including the
// receiver) with the given tag, or nil.
func (e *Element) Find(tag string) *Element {
	if e.Tag == tag {
		return e
	}
	for _, c := range e.Children() {
		if found := c.Find(tag); found != nil {
			return found
		}
	}
	return nil
}

// toNode converts the element subtree into an html.Node tree for
// serialization. Attributes are emitted in sorted order so output is stable.
func (e *Element) toNode() *html.Node {
	e.mu.Lock()
	keys := make([]string, 0, len(e.attrs))
	for k := range e.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     e.Tag,
		DataAtom: atom.Lookup([]byte(e.Tag)),
	}
	for _, k := range keys {
		n.Attr = append(n.Attr, html.Attribute{Key: k, Val: e.attrs[k]})
	}
	text := e.text
	children := make([]*Element, len(e.children))
	copy(children, e.children)
	e.mu.Unlock()

	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	for _, c := range children {
		n.AppendChild(c.toNode())
	}
	return n
}
