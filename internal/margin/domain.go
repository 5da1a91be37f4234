package margin

import (
	"fmt"
	"strings"
	"time"
)

// Date is a calendar day. It marshals as "2006-01-02" to match the
// document dates produced by the ingestion layer.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: invalid date %q", ErrValidation, s)
	}
	return Date{t}, nil
}

// NewDate builds a Date from year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// MarshalJSON renders the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts "YYYY-MM-DD" or an empty string.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// DaysBetween returns the absolute distance between two dates in whole days.
func DaysBetween(a, b Date) int {
	diff := int(a.Sub(b.Time).Hours() / 24)
	if diff < 0 {
		diff = -diff
	}
	return diff
}

// ============================================================================
// DOCUMENTS
// ============================================================================

// Sale is a sales invoice within a session. Amount is net of VAT and may be
// negative for credit notes. LinkedCosts is mutated only through the Index.
type Sale struct {
	ID          string   `json:"id"`
	Number      string   `json:"number"`
	Date        Date     `json:"date"`
	Client      string   `json:"client"`
	ClientNIF   string   `json:"client_nif,omitempty"`
	Amount      float64  `json:"amount"`
	VATAmount   float64  `json:"vat_amount"`
	GrossTotal  float64  `json:"gross_total"`
	DocType     string   `json:"doc_type,omitempty"`
	LinkedCosts []string `json:"linked_costs"`
}

// Cost is a purchase document within a session. LinkedSales is mutated only
// through the Index.
type Cost struct {
	ID             string   `json:"id"`
	Supplier       string   `json:"supplier"`
	SupplierNIF    string   `json:"supplier_nif,omitempty"`
	Description    string   `json:"description"`
	Date           Date     `json:"date"`
	Amount         float64  `json:"amount"`
	VATAmount      float64  `json:"vat_amount"`
	GrossTotal     float64  `json:"gross_total"`
	DocumentNumber string   `json:"document_number,omitempty"`
	Category       string   `json:"category,omitempty"`
	LinkedSales    []string `json:"linked_sales"`
}

// DocumentType classifies a sales document from its number prefix.
func DocumentType(number string) string {
	switch {
	case strings.HasPrefix(number, "FT"):
		return "Fatura"
	case strings.HasPrefix(number, "FR"):
		return "Fatura-Recibo"
	case strings.HasPrefix(number, "NC"):
		return "Nota de Crédito"
	case strings.HasPrefix(number, "ND"):
		return "Nota de Débito"
	case strings.HasPrefix(number, "FS"):
		return "Fatura Simplificada"
	default:
		return "Outro"
	}
}

// ============================================================================
// CALCULATION RESULTS
// ============================================================================

// LinkedCostDetail describes one cost's share inside a sale calculation.
type LinkedCostDetail struct {
	CostID          string  `json:"cost_id"`
	Supplier        string  `json:"supplier"`
	Description     string  `json:"description"`
	DocumentNumber  string  `json:"document_number,omitempty"`
	Date            Date    `json:"date"`
	TotalAmount     float64 `json:"total_amount"`
	AllocatedAmount float64 `json:"allocated_amount"`
	SharedWith      int     `json:"shared_with"`
}

// CalculationResult is the transaction-mode outcome for a single sale.
// Field names are stable; the Excel and PDF exporters read them by name.
type CalculationResult struct {
	SaleID          string             `json:"sale_id"`
	InvoiceNumber   string             `json:"invoice_number"`
	InvoiceType     string             `json:"invoice_type"`
	Date            Date               `json:"date"`
	Client          string             `json:"client"`
	SaleAmount      float64            `json:"sale_amount"`
	AllocatedCosts  float64            `json:"total_allocated_costs"`
	GrossMargin     float64            `json:"gross_margin"`
	VATRate         float64            `json:"vat_rate"`
	VATAmount       float64            `json:"vat_amount"`
	NetMargin       float64            `json:"net_margin"`
	MarginPercent   float64            `json:"margin_percentage"`
	LinkedCosts     []LinkedCostDetail `json:"linked_costs"`
	CostCount       int                `json:"cost_count"`
}

// Summary aggregates transaction-mode results across a session.
type Summary struct {
	TotalSales         float64 `json:"total_sales"`
	TotalAllocatedCost float64 `json:"total_costs"`
	GrossMargin        float64 `json:"total_gross_margin"`
	TotalVAT           float64 `json:"total_vat"`
	NetMargin          float64 `json:"total_net_margin"`
	AverageMarginPct   float64 `json:"average_margin_percentage"`
	DocumentsProcessed int     `json:"documents_processed"`
	DocumentsWithGain  int     `json:"documents_with_margin"`
	DocumentsWithLoss  int     `json:"documents_with_loss"`
}

// IssueSeverity grades calculation issues.
type IssueSeverity string

const (
	IssueWarning IssueSeverity = "warning"
	IssueInfo    IssueSeverity = "info"
)

// Issue flags a suspicious row without aborting the batch.
type Issue struct {
	Severity IssueSeverity `json:"type"`
	Invoice  string        `json:"invoice"`
	Message  string        `json:"message"`
}

// Match is one accepted auto-match proposal.
type Match struct {
	SaleID string  `json:"sale_id"`
	CostID string  `json:"cost_id"`
	Score  float64 `json:"score"`
}
