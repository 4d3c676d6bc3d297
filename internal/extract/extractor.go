package extract

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/patent-collector/internal/patent"
)

// Extractor produces patent records using per-field strategy lists.
type Extractor struct {
	siteRoot string
	title    []Strategy
	assignee []Strategy
	inventor []Strategy
	status   []Strategy
}

// New builds an Extractor with the default strategy order.
func New(siteRoot string) *Extractor {
	if siteRoot == "" {
		siteRoot = patent.DefaultSiteRoot
	}
	return &Extractor{
		siteRoot: siteRoot,
		title:    []Strategy{HeadingTitle},
		assignee: []Strategy{AssigneeMeta, AssigneeLabel},
		inventor: []Strategy{InventorLabel},
		status:   []Strategy{StatusLabel},
	}
}

// Parse builds a document from a fetched page body.
func Parse(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Extract resolves every field of the record. It never fails: fields whose
// strategies miss fall back to their defaults and are listed in Gaps.
func (e *Extractor) Extract(doc *goquery.Document, id, sourceURL string) patent.Record {
	rec := patent.Record{
		ID:  id,
		URL: sourceURL,
	}
	rec.Title = e.resolve(doc, &rec, patent.FieldTitle, e.title, patent.DefaultTitle)
	rec.Assignee = e.resolve(doc, &rec, patent.FieldAssignee, e.assignee, patent.DefaultUnknown)
	rec.Inventor = e.resolve(doc, &rec, patent.FieldInventor, e.inventor, patent.DefaultUnknown)
	rec.Status = e.resolve(doc, &rec, patent.FieldStatus, e.status, patent.DefaultUnknown)
	rec.Citations = CitationTable(doc, BackwardReferences, e.siteRoot)
	rec.CitedBy = CitationTable(doc, ForwardReferences, e.siteRoot)
	rec.SimilarDocuments = SimilarDocuments(doc, e.siteRoot)
	return rec
}

func (e *Extractor) resolve(
	doc *goquery.Document,
	rec *patent.Record,
	field string,
	strategies []Strategy,
	def string,
) string {
	if v, ok := FirstMatch(doc, strategies); ok {
		return v
	}
	rec.Gaps = append(rec.Gaps, field)
	return def
}
