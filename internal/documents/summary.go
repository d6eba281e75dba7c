// Package documents projects purchase orders and requisitions into printable line summaries.
package documents

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultPageSize is the number of lines per page when none is configured.
const DefaultPageSize = 10

// Kind names the source document.
type Kind string

const (
	KindPurchaseOrder Kind = "purchase_order"
	KindRequisition   Kind = "requisition"
)

// Source is the document header plus its ordered lines.
type Source struct {
	Kind     Kind
	ID       uuid.UUID
	Status   string
	Type     string
	Supplier string
	Items    []Item
}

// Item is one billable line before totals are computed.
type Item struct {
	Description string
	Quantity    int
	Unit        string
	UnitPrice   decimal.Decimal
}

// Line is a priced row of the summary.
type Line struct {
	No        int             `json:"no"`
	Item      string          `json:"item"`
	Quantity  int             `json:"qty"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Page is one printed page of lines.
type Page struct {
	Number   int             `json:"number"`
	Lines    []Line          `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Summary is the full projection.
type Summary struct {
	Kind       Kind            `json:"kind"`
	ID         uuid.UUID       `json:"id"`
	Status     string          `json:"status"`
	Type       string          `json:"type,omitempty"`
	Supplier   string          `json:"supplier,omitempty"`
	Lines      []Line          `json:"lines"`
	Pages      []Page          `json:"pages"`
	PageCount  int             `json:"page_count"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// Summarize prices every item and splits the lines into pages of pageSize.
// A document without items still yields one empty page.
func Summarize(src Source, pageSize int) Summary {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	summary := Summary{
		Kind:       src.Kind,
		ID:         src.ID,
		Status:     src.Status,
		Type:       src.Type,
		Supplier:   src.Supplier,
		Lines:      make([]Line, 0, len(src.Items)),
		GrandTotal: decimal.Zero,
	}
	for i, item := range src.Items {
		line := Line{
			No:        i + 1,
			Item:      item.Description,
			Quantity:  item.Quantity,
			Unit:      item.Unit,
			UnitPrice: item.UnitPrice,
			LineTotal: item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
		}
		summary.Lines = append(summary.Lines, line)
		summary.GrandTotal = summary.GrandTotal.Add(line.LineTotal)
	}

	for start := 0; start < len(summary.Lines) || start == 0; start += pageSize {
		end := start + pageSize
		if end > len(summary.Lines) {
			end = len(summary.Lines)
		}
		page := Page{Number: len(summary.Pages) + 1, Lines: summary.Lines[start:end], Subtotal: decimal.Zero}
		for _, line := range page.Lines {
			page.Subtotal = page.Subtotal.Add(line.LineTotal)
		}
		summary.Pages = append(summary.Pages, page)
		if end == len(summary.Lines) {
			break
		}
	}
	summary.PageCount = len(summary.Pages)
	return summary
}
