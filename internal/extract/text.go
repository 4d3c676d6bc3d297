package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var reWhitespace = regexp.MustCompile(`\s+`)

// NormalizeText collapses whitespace runs to a single space and trims.
func NormalizeText(text string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

// textNodeParents returns the parent element of every text node for which
// match reports true, in document order.
func textNodeParents(doc *goquery.Document, match func(string) bool) []*goquery.Selection {
	var out []*goquery.Selection
	for _, root := range doc.Nodes {
		walk(root, func(n *html.Node) {
			if n.Type != html.TextNode || n.Parent == nil || !match(n.Data) {
				return
			}
			out = append(out, doc.FindNodes(n.Parent))
		})
	}
	return out
}

func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}
