package render

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/patrickwarner/slotengine/internal/models"
)

// AdMarkup is the usable content recovered from an ORTB adm fragment: the
// anchor destination, the image source, and the impression URL embedded in
// the image's onload handler, if any.
type AdMarkup struct {
	ClickURL      string
	ImageURL      string
	ImpressionURL string
}

var onloadURLPattern = regexp.MustCompile(`sendUrl\(\s*['"]([^'"]+)['"]\s*\)`)

// ParseAdMarkup parses an ORTB ad markup fragment. The fragment is expected
// to contain one anchor wrapping one image; the image may carry an onload
// handler of the form sendUrl('<url>'). A fragment without a usable image is
// a terminal creative failure.
func ParseAdMarkup(adm string) (AdMarkup, error) {
	if strings.TrimSpace(adm) == "" {
		return AdMarkup{}, fmt.Errorf("%w: empty ad markup", models.ErrInvalidCreative)
	}

	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(adm), container)
	if err != nil {
		return AdMarkup{}, fmt.Errorf("%w: parse ad markup: %v", models.ErrInvalidCreative, err)
	}

	var markup AdMarkup
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.A:
				if markup.ClickURL == "" {
					markup.ClickURL = nodeAttr(n, "href")
				}
			case atom.Img:
				if markup.ImageURL == "" {
					markup.ImageURL = nodeAttr(n, "src")
					if onload := nodeAttr(n, "onload"); onload != "" {
						if m := onloadURLPattern.FindStringSubmatch(onload); m != nil {
							markup.ImpressionURL = m[1]
						}
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}

	if markup.ImageURL == "" {
		return AdMarkup{}, fmt.Errorf("%w: ad markup has no usable image", models.ErrInvalidCreative)
	}
	return markup, nil
}

func nodeAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
