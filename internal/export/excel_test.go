package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iva-margem/iva-margem/internal/margin"
	"github.com/iva-margem/iva-margem/internal/period"
)

func TestBuildWorkbook(t *testing.T) {
	results := []margin.CalculationResult{
		{
			InvoiceNumber:  "FT 2025/1",
			InvoiceType:    "Fatura",
			Date:           margin.NewDate(2025, 1, 15),
			Client:         "Silva",
			SaleAmount:     1000,
			AllocatedCosts: 600,
			GrossMargin:    400,
			VATRate:        23,
			VATAmount:      92,
			NetMargin:      308,
			MarginPercent:  40,
			CostCount:      1,
		},
		{
			InvoiceNumber: "NC 2025/1",
			InvoiceType:   "Nota de Crédito",
			SaleAmount:    -200,
			GrossMargin:   -200,
			NetMargin:     -200,
		},
	}
	summary := margin.Summary{
		TotalSales:         800,
		TotalAllocatedCost: 600,
		GrossMargin:        200,
		TotalVAT:           92,
		NetMargin:          108,
		DocumentsProcessed: 2,
		DocumentsWithGain:  1,
		DocumentsWithLoss:  1,
	}

	book, err := BuildWorkbook(results, summary, 23)
	require.NoError(t, err)
	defer func() { _ = book.Close() }()

	header, err := book.GetCellValue("Cálculo", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Documento", header)

	number, err := book.GetCellValue("Cálculo", "A2")
	require.NoError(t, err)
	assert.Equal(t, "FT 2025/1", number)

	vat, err := book.GetCellValue("Cálculo", "I2")
	require.NoError(t, err)
	assert.Equal(t, "92", vat)

	nc, err := book.GetCellValue("Cálculo", "A3")
	require.NoError(t, err)
	assert.Equal(t, "NC 2025/1", nc)

	label, err := book.GetCellValue("Resumo", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Total Vendas", label)
	total, err := book.GetCellValue("Resumo", "B2")
	require.NoError(t, err)
	assert.Equal(t, "800", total)
}

func TestBuildWorkbookEmptySession(t *testing.T) {
	book, err := BuildWorkbook(nil, margin.Summary{}, 23)
	require.NoError(t, err)
	defer func() { _ = book.Close() }()

	header, err := book.GetCellValue("Cálculo", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Documento", header)

	empty, err := book.GetCellValue("Cálculo", "A2")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPeriodReportHTML(t *testing.T) {
	fp, err := period.Quarter(2025, 2)
	require.NoError(t, err)

	html, err := PeriodReportHTML(&period.Result{
		Period:            fp,
		VATRate:           23,
		TotalSales:        20000,
		TotalAllocated:    0,
		GrossMargin:       20000,
		CarryForwardIn:    -10274.16,
		CompensatedMargin: 9725.84,
		VATAmount:         2236.94,
		CarryForwardOut:   0,
		SaleCount:         1,
	})
	require.NoError(t, err)

	assert.Contains(t, html, "2025T2")
	assert.Contains(t, html, "2025-04-01")
	assert.Contains(t, html, "-10274.16")
	assert.Contains(t, html, "9725.84")
	assert.Contains(t, html, "2236.94")
	assert.Contains(t, html, `class="negative"`)
}
