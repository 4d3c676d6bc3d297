package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy resolves one field from a document, reporting false on no match.
type Strategy func(doc *goquery.Document) (string, bool)

// FirstMatch evaluates strategies in order and returns the first match.
func FirstMatch(doc *goquery.Document, strategies []Strategy) (string, bool) {
	for _, s := range strategies {
		if v, ok := s(doc); ok {
			return v, true
		}
	}
	return "", false
}

const (
	labelCurrentAssignee = "Current Assignee"
	labelInventor        = "Inventor"
	labelStatus          = "Status"
)

var reLeadingBullet = regexp.MustCompile(`^[•\-:]\s*`)

// HeadingTitle reads the first h1 element.
func HeadingTitle(doc *goquery.Document) (string, bool) {
	h1 := doc.Find("h1").First()
	if h1.Length() == 0 {
		return "", false
	}
	title := NormalizeText(h1.Text())
	return title, title != ""
}

// AssigneeMeta reads <meta scheme="assignee" content="...">.
func AssigneeMeta(doc *goquery.Document) (string, bool) {
	content, ok := doc.Find(`meta[scheme="assignee"]`).First().Attr("content")
	if !ok {
		return "", false
	}
	content = NormalizeText(content)
	return content, content != ""
}

// AssigneeLabel finds the "Current Assignee" label and strips it from the
// surrounding container text.
func AssigneeLabel(doc *goquery.Document) (string, bool) {
	parents := textNodeParents(doc, func(s string) bool {
		return strings.Contains(s, labelCurrentAssignee)
	})
	if len(parents) == 0 {
		return "", false
	}
	text := parents[0].Text()
	text = strings.ReplaceAll(text, labelCurrentAssignee, "")
	text = strings.ReplaceAll(text, ":", "")
	text = NormalizeText(text)
	return text, text != ""
}

// InventorLabel takes the container of the first "Inventor" text node and
// keeps what follows the first occurrence of the label.
func InventorLabel(doc *goquery.Document) (string, bool) {
	parents := textNodeParents(doc, func(s string) bool {
		return strings.Contains(s, labelInventor)
	})
	if len(parents) == 0 {
		return "", false
	}
	full := NormalizeText(parents[0].Text())
	_, rest, found := strings.Cut(full, labelInventor)
	if !found {
		return "", false
	}
	rest = strings.TrimSpace(strings.ReplaceAll(rest, ":", ""))
	return rest, rest != ""
}

// StatusLabel scans text nodes starting with "Status" and returns the first
// non-empty remainder of a container that mentions the label.
func StatusLabel(doc *goquery.Document) (string, bool) {
	parents := textNodeParents(doc, func(s string) bool {
		return strings.HasPrefix(strings.TrimSpace(s), labelStatus)
	})
	for _, parent := range parents {
		text := NormalizeText(parent.Text())
		if !strings.Contains(text, labelStatus) {
			continue
		}
		cleaned := strings.TrimSpace(strings.ReplaceAll(text, labelStatus, ""))
		cleaned = strings.TrimSpace(reLeadingBullet.ReplaceAllString(cleaned, ""))
		if cleaned != "" {
			return cleaned, true
		}
	}
	return "", false
}
