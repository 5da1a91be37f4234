package ingest

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/iva-margem/iva-margem/internal/margin"
)

// SAF-T (PT) audit file. Element matching is by local name, so both the
// namespaced and the namespace-free exports decode.
type auditFile struct {
	Header struct {
		CompanyName string `xml:"CompanyName"`
	} `xml:"Header"`
	MasterFiles struct {
		Customers []saftEntity `xml:"Customer"`
		Suppliers []saftEntity `xml:"Supplier"`
	} `xml:"MasterFiles"`
	SourceDocuments struct {
		SalesInvoices struct {
			Invoices []saftInvoice `xml:"Invoice"`
		} `xml:"SalesInvoices"`
		PurchaseInvoices struct {
			Invoices []saftInvoice `xml:"Invoice"`
		} `xml:"PurchaseInvoices"`
	} `xml:"SourceDocuments"`
}

type saftEntity struct {
	CustomerID  string `xml:"CustomerID"`
	SupplierID  string `xml:"SupplierID"`
	CompanyName string `xml:"CompanyName"`
	TaxID       string `xml:"CustomerTaxID"`
	SupplierTax string `xml:"SupplierTaxID"`
}

type saftInvoice struct {
	InvoiceNo   string `xml:"InvoiceNo"`
	InvoiceDate string `xml:"InvoiceDate"`
	InvoiceType string `xml:"InvoiceType"`
	CustomerID  string `xml:"CustomerID"`
	SupplierID  string `xml:"SupplierID"`
	Totals      struct {
		TaxPayable float64 `xml:"TaxPayable"`
		NetTotal   float64 `xml:"NetTotal"`
		GrossTotal float64 `xml:"GrossTotal"`
	} `xml:"DocumentTotals"`
}

// ParseSAFT parses a Portuguese SAF-T XML export. Sales come from
// SourceDocuments/SalesInvoices; purchase documents, when present, become
// costs. Credit notes flip sign, mirroring the e-Fatura path.
func ParseSAFT(data []byte) (*Result, error) {
	var file auditFile
	if err := xml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("ingest: parse saf-t: %w", err)
	}

	res := &Result{Source: "SAF-T XML", CompanyName: strings.TrimSpace(file.Header.CompanyName)}

	customers := make(map[string]saftEntity, len(file.MasterFiles.Customers))
	for _, c := range file.MasterFiles.Customers {
		customers[c.CustomerID] = c
	}
	suppliers := make(map[string]saftEntity, len(file.MasterFiles.Suppliers))
	for _, s := range file.MasterFiles.Suppliers {
		suppliers[s.SupplierID] = s
	}

	for _, inv := range file.SourceDocuments.SalesInvoices.Invoices {
		if inv.InvoiceNo == "" {
			res.Errors = append(res.Errors, "sales invoice without InvoiceNo skipped")
			continue
		}
		multiplier := 1.0
		if inv.InvoiceType == "NC" || strings.HasPrefix(inv.InvoiceNo, "NC") {
			multiplier = -1
		}
		client := "Cliente " + inv.CustomerID
		clientNIF := ""
		if c, ok := customers[inv.CustomerID]; ok {
			if c.CompanyName != "" {
				client = c.CompanyName
			}
			clientNIF = c.TaxID
		}
		res.Sales = append(res.Sales, margin.Sale{
			ID:         "s_" + shortID(),
			Number:     inv.InvoiceNo,
			Date:       parseDate(inv.InvoiceDate),
			Client:     client,
			ClientNIF:  clientNIF,
			Amount:     inv.Totals.NetTotal * multiplier,
			VATAmount:  inv.Totals.TaxPayable * multiplier,
			GrossTotal: inv.Totals.GrossTotal * multiplier,
			DocType:    inv.InvoiceType,
		})
	}

	for _, inv := range file.SourceDocuments.PurchaseInvoices.Invoices {
		if inv.InvoiceNo == "" {
			res.Errors = append(res.Errors, "purchase invoice without InvoiceNo skipped")
			continue
		}
		supplier := "Fornecedor " + inv.SupplierID
		supplierNIF := ""
		if s, ok := suppliers[inv.SupplierID]; ok {
			if s.CompanyName != "" {
				supplier = s.CompanyName
			}
			supplierNIF = s.SupplierTax
		}
		cost := margin.Cost{
			ID:             "c_" + shortID(),
			Supplier:       supplier,
			SupplierNIF:    supplierNIF,
			Description:    "Compra - " + inv.InvoiceType,
			Date:           parseDate(inv.InvoiceDate),
			Amount:         inv.Totals.NetTotal,
			VATAmount:      inv.Totals.TaxPayable,
			GrossTotal:     inv.Totals.GrossTotal,
			DocumentNumber: inv.InvoiceNo,
		}
		cost.Category = Categorize(cost.Supplier, cost.Description)
		res.Costs = append(res.Costs, cost)
	}

	return res, nil
}
