// Package export renders calculation results for download: an Excel
// workbook for the per-sale breakdown and a Gotenberg-backed PDF for the
// period report.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/iva-margem/iva-margem/internal/margin"
)

const (
	sheetResults = "Cálculo"
	sheetSummary = "Resumo"
)

var resultHeaders = []string{
	"Documento", "Tipo", "Data", "Cliente", "Valor Venda",
	"Custos Imputados", "Margem Bruta", "Taxa IVA", "IVA sobre Margem",
	"Margem Líquida", "Margem %", "Nº Custos",
}

// BuildWorkbook produces the transaction-mode export: one row per sale on
// the results sheet and the session totals on the summary sheet.
func BuildWorkbook(results []margin.CalculationResult, summary margin.Summary, rate float64) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetResults); err != nil {
		return nil, fmt.Errorf("export: rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return nil, fmt.Errorf("export: summary sheet: %w", err)
	}

	for col, header := range resultHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("export: header cell: %w", err)
		}
		if err := f.SetCellValue(sheetResults, cell, header); err != nil {
			return nil, fmt.Errorf("export: header: %w", err)
		}
	}

	for i, res := range results {
		row := i + 2
		values := []any{
			res.InvoiceNumber,
			res.InvoiceType,
			res.Date.String(),
			res.Client,
			res.SaleAmount,
			res.AllocatedCosts,
			res.GrossMargin,
			res.VATRate,
			res.VATAmount,
			res.NetMargin,
			res.MarginPercent,
			res.CostCount,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, fmt.Errorf("export: cell: %w", err)
			}
			if err := f.SetCellValue(sheetResults, cell, v); err != nil {
				return nil, fmt.Errorf("export: row %d: %w", row, err)
			}
		}
	}

	summaryRows := [][2]any{
		{"Taxa IVA", rate},
		{"Total Vendas", summary.TotalSales},
		{"Total Custos Imputados", summary.TotalAllocatedCost},
		{"Margem Bruta Total", summary.GrossMargin},
		{"IVA Total", summary.TotalVAT},
		{"Margem Líquida Total", summary.NetMargin},
		{"Margem Média %", summary.AverageMarginPct},
		{"Documentos Processados", summary.DocumentsProcessed},
		{"Documentos com Margem", summary.DocumentsWithGain},
		{"Documentos com Prejuízo", summary.DocumentsWithLoss},
	}
	for i, kv := range summaryRows {
		row := i + 1
		if err := f.SetCellValue(sheetSummary, fmt.Sprintf("A%d", row), kv[0]); err != nil {
			return nil, fmt.Errorf("export: summary label: %w", err)
		}
		if err := f.SetCellValue(sheetSummary, fmt.Sprintf("B%d", row), kv[1]); err != nil {
			return nil, fmt.Errorf("export: summary value: %w", err)
		}
	}

	return f, nil
}
