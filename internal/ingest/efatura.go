// Package ingest parses source document exports into session records. Row
// level problems are collected as metadata errors; a malformed row never
// aborts the rest of the batch.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"

	"github.com/iva-margem/iva-margem/internal/margin"
)

// Result carries the parsed documents plus non-fatal row errors.
type Result struct {
	Sales       []margin.Sale
	Costs       []margin.Cost
	Source      string
	CompanyName string
	Errors      []string
}

// ParseEFatura parses the two Portal das Finanças e-Fatura CSV exports:
// the issued-documents file (vendas) and the acquired-documents file
// (compras).
func ParseEFatura(vendas, compras []byte) (*Result, error) {
	res := &Result{Source: "e-Fatura CSV"}

	saleRows, errs := readCSV(vendas)
	res.Errors = append(res.Errors, errs...)
	for i, row := range saleRows {
		sale, rowErr := parseVendaRow(row, i+2)
		if rowErr != "" {
			res.Errors = append(res.Errors, rowErr)
			continue
		}
		res.Sales = append(res.Sales, sale)
	}

	costRows, errs := readCSV(compras)
	res.Errors = append(res.Errors, errs...)
	for i, row := range costRows {
		cost, rowErr := parseCompraRow(row, i+2)
		if rowErr != "" {
			res.Errors = append(res.Errors, rowErr)
			continue
		}
		res.Costs = append(res.Costs, cost)
	}

	return res, nil
}

// readCSV decodes a semicolon-delimited export into header-keyed rows.
// Portal exports arrive either as UTF-8 or Windows-1252.
func readCSV(content []byte) ([]map[string]string, []string) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, nil
	}
	text := decodeBytes(content)

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = ';'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, []string{fmt.Sprintf("csv header: %v", err)}
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []map[string]string
	var errs []string
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("csv row %d: %v", line, err))
			continue
		}
		row := make(map[string]string, len(header))
		for i, field := range record {
			if i < len(header) {
				row[header[i]] = strings.TrimSpace(field)
			}
		}
		rows = append(rows, row)
	}
	return rows, errs
}

// decodeBytes returns UTF-8 text, falling back to Windows-1252 when the
// payload is not valid UTF-8 (legacy Portal das Finanças downloads).
func decodeBytes(content []byte) string {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if utf8.Valid(content) {
		return string(content)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(content)
	if err != nil {
		return string(content)
	}
	return string(decoded)
}

func parseVendaRow(row map[string]string, line int) (margin.Sale, string) {
	docType := fieldAny(row, "Tipo do Documento", "Tipo")
	multiplier := 1.0
	if strings.Contains(strings.ToLower(docType), "crédito") {
		multiplier = -1
	}
	clientNIF := fieldAny(row, "NIF Adquirente")
	client := "Cliente Indiferenciado"
	if clientNIF != "" {
		client = "Cliente NIF " + clientNIF
	}
	number := fieldAny(row, "Nº Documento / ATCUD", "Nº Documento")
	if number == "" {
		number = fmt.Sprintf("DOC_%d", line)
	}
	return margin.Sale{
		ID:         "s_" + shortID(),
		Number:     number,
		Date:       parseDate(fieldAny(row, "Data Emissão")),
		Client:     client,
		ClientNIF:  clientNIF,
		Amount:     parseAmount(fieldAny(row, "Base Tributável")) * multiplier,
		VATAmount:  parseAmount(fieldAny(row, "IVA")) * multiplier,
		GrossTotal: parseAmount(fieldAny(row, "Total")) * multiplier,
		DocType:    docType,
	}, ""
}

func parseCompraRow(row map[string]string, line int) (margin.Cost, string) {
	docType := fieldAny(row, "Tipo")
	multiplier := 1.0
	if strings.Contains(strings.ToLower(docType), "crédito") {
		multiplier = -1
	}
	supplierNIF, supplierName := parseEntity(fieldAny(row, "Emitente"))
	number := fieldAny(row, "Nº Fatura / ATCUD", "Nº Fatura")
	if number == "" {
		number = fmt.Sprintf("DOC_%d", line)
	}
	cost := margin.Cost{
		ID:             "c_" + shortID(),
		Supplier:       supplierName,
		SupplierNIF:    supplierNIF,
		Description:    "Compra - " + docType,
		Date:           parseDate(fieldAny(row, "Data Emissão")),
		Amount:         parseAmount(fieldAny(row, "Base Tributável")) * multiplier,
		VATAmount:      parseAmount(fieldAny(row, "IVA")) * multiplier,
		GrossTotal:     parseAmount(fieldAny(row, "Total")) * multiplier,
		DocumentNumber: number,
	}
	cost.Category = Categorize(cost.Supplier, cost.Description)
	return cost, ""
}

func fieldAny(row map[string]string, names ...string) string {
	for _, name := range names {
		if v, ok := row[name]; ok && v != "" {
			return v
		}
	}
	return ""
}

// parseEntity splits the "NIF - Name" issuer format used by the compras file.
func parseEntity(raw string) (nif, name string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "Desconhecido"
	}
	if nifPart, namePart, ok := strings.Cut(raw, " - "); ok {
		nifPart = strings.TrimSpace(nifPart)
		if _, err := strconv.Atoi(nifPart); err == nil {
			return nifPart, strings.TrimSpace(namePart)
		}
	}
	return "", raw
}

// parseAmount handles the Portuguese formats "1.234,56 €" and "1234,56".
// Unparseable values resolve to 0 so a single bad cell cannot sink a batch.
func parseAmount(value string) float64 {
	cleaned := strings.NewReplacer("€", "", "�", "", " ", "", " ", "").Replace(value)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0
	}
	if strings.Contains(cleaned, ".") && strings.Contains(cleaned, ",") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

var dateLayouts = []string{"02/01/2006", "02-01-2006", "2006-01-02", "2006/01/02"}

func parseDate(value string) margin.Date {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return margin.Date{Time: t}
		}
	}
	return margin.Date{}
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
