package export

import (
	"bytes"
	"html/template"

	"github.com/iva-margem/iva-margem/internal/period"
)

var periodReportTmpl = template.Must(template.New("period").Parse(`<!DOCTYPE html>
<html lang="pt">
<head>
<meta charset="utf-8">
<title>Apuramento IVA sobre a Margem</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 2.5em; color: #222; }
h1 { font-size: 1.4em; border-bottom: 2px solid #444; padding-bottom: .3em; }
table { border-collapse: collapse; width: 100%; margin-top: 1.5em; }
td, th { border: 1px solid #999; padding: .45em .7em; text-align: right; }
th { background: #f0f0f0; text-align: left; }
.negative { color: #b00020; }
</style>
</head>
<body>
<h1>Apuramento do IVA sobre a Margem — {{.Period.Year}}T{{.Period.Quarter}}</h1>
<p>Período de {{.Period.Start}} a {{.Period.End}} · Taxa {{printf "%.0f" .VATRate}}% · Regime da margem (CIVA Art. 308º)</p>
<table>
<tr><th>Vendas do período</th><td>{{printf "%.2f" .TotalSales}} €</td></tr>
<tr><th>Custos imputados</th><td>{{printf "%.2f" .TotalAllocated}} €</td></tr>
<tr><th>Margem bruta do período</th><td{{if lt .GrossMargin 0.0}} class="negative"{{end}}>{{printf "%.2f" .GrossMargin}} €</td></tr>
<tr><th>Margem negativa transitada</th><td{{if lt .CarryForwardIn 0.0}} class="negative"{{end}}>{{printf "%.2f" .CarryForwardIn}} €</td></tr>
<tr><th>Margem compensada</th><td{{if lt .CompensatedMargin 0.0}} class="negative"{{end}}>{{printf "%.2f" .CompensatedMargin}} €</td></tr>
<tr><th>IVA liquidado</th><td>{{printf "%.2f" .VATAmount}} €</td></tr>
<tr><th>Margem negativa a transitar</th><td{{if lt .CarryForwardOut 0.0}} class="negative"{{end}}>{{printf "%.2f" .CarryForwardOut}} €</td></tr>
<tr><th>Documentos de venda no período</th><td>{{.SaleCount}}</td></tr>
</table>
</body>
</html>
`))

// PeriodReportHTML renders the period result into the HTML document fed to
// the PDF converter.
func PeriodReportHTML(result *period.Result) (string, error) {
	var buf bytes.Buffer
	if err := periodReportTmpl.Execute(&buf, result); err != nil {
		return "", err
	}
	return buf.String(), nil
}
