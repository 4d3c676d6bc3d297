package extract

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/patent-collector/internal/patent"
)

// Structural markers of the citation tables.
const (
	BackwardReferences = "backwardReferences"
	ForwardReferences  = "forwardReferences"
)

const minSimilarCells = 3

// CitationTable maps rows tagged itemprop=<marker> positionally onto
// CitationEntry values.
func CitationTable(doc *goquery.Document, marker, siteRoot string) []patent.CitationEntry {
	entries := []patent.CitationEntry{}
	doc.Find(`tr[itemprop="` + marker + `"]`).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 {
			return
		}
		entries = append(entries, patent.CitationEntry{
			PublicationNumber: cellText(cells, 0),
			PriorityDate:      cellText(cells, 1),
			PublicationDate:   cellText(cells, 2),
			Assignee:          cellText(cells, 3),
			Title:             cellText(cells, 4),
			Link:              cellLink(cells, siteRoot),
		})
	})
	return entries
}

// SimilarDocuments reads the similar-documents section. Rows with fewer than
// three cells are ignored.
func SimilarDocuments(doc *goquery.Document, siteRoot string) []patent.CitationEntry {
	entries := []patent.CitationEntry{}
	doc.Find("section#similarDocuments tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < minSimilarCells {
			return
		}
		entries = append(entries, patent.CitationEntry{
			PublicationNumber: cellText(cells, 0),
			PublicationDate:   cellText(cells, 1),
			Title:             cellText(cells, 2),
			Assignee:          patent.NotApplicable,
			PriorityDate:      "",
			Link:              cellLink(cells, siteRoot),
		})
	})
	return entries
}

func cellText(cells *goquery.Selection, idx int) string {
	if idx >= cells.Length() {
		return ""
	}
	return NormalizeText(cells.Eq(idx).Text())
}

func cellLink(cells *goquery.Selection, siteRoot string) string {
	href, ok := cells.First().Find("a").First().Attr("href")
	if !ok {
		return ""
	}
	return patent.AbsoluteURL(siteRoot, href)
}
