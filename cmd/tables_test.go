package cmd

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractTableByHeaderCaseInsensitive(t *testing.T) {
	doc := parseDoc(t, `
	<table>
		<tr><th>cpf</th><th>NOME</th><th> Tipo </th></tr>
		<tr><td>***.123.456-**</td><td>Maria Silva</td><td>Gestor</td></tr>
	</table>`)

	rows := extractTableByHeader(doc, responsibleColumns)
	require.Len(t, rows, 1)
	require.Equal(t, "Maria Silva", rows[0]["Nome"])
	require.Equal(t, "Gestor", rows[0]["Tipo"])
}

func TestExtractTableByHeaderReordered(t *testing.T) {
	doc := parseDoc(t, `
	<table>
		<tr><th>Nome</th><th>Tipo</th><th>CPF</th></tr>
		<tr><td>Maria Silva</td><td>Gestor</td><td>***.123.456-**</td></tr>
	</table>`)

	rows := extractTableByHeader(doc, responsibleColumns)
	require.Len(t, rows, 1)
	require.Equal(t, "***.123.456-**", rows[0]["CPF"])
	require.Equal(t, "Maria Silva", rows[0]["Nome"])
}

func TestExtractTableByHeaderNoMatch(t *testing.T) {
	doc := parseDoc(t, `
	<table>
		<tr><th>Outra</th><th>Coisa</th></tr>
		<tr><td>a</td><td>b</td></tr>
	</table>`)

	require.Empty(t, extractTableByHeader(doc, responsibleColumns))
}

func TestExtractTableByHeaderFirstTableWins(t *testing.T) {
	doc := parseDoc(t, `
	<table>
		<tr><th>CPF</th><th>Nome</th><th>Tipo</th></tr>
		<tr><td>1</td><td>primeira</td><td>x</td></tr>
	</table>
	<table>
		<tr><th>CPF</th><th>Nome</th><th>Tipo</th></tr>
		<tr><td>2</td><td>segunda</td><td>y</td></tr>
	</table>`)

	rows := extractTableByHeader(doc, responsibleColumns)
	require.Len(t, rows, 1)
	require.Equal(t, "primeira", rows[0]["Nome"])
}

func TestExtractTableByHeaderSkipsShortRows(t *testing.T) {
	doc := parseDoc(t, `
	<table>
		<tr><th>CPF</th><th>Nome</th><th>Tipo</th></tr>
		<tr><td colspan="3">nenhum registro</td></tr>
		<tr><td>1</td><td>Maria</td><td>Gestor</td></tr>
	</table>`)

	rows := extractTableByHeader(doc, responsibleColumns)
	require.Len(t, rows, 1)
	require.Equal(t, "Maria", rows[0]["Nome"])
}

func TestExtractHistoryTable(t *testing.T) {
	doc := parseDoc(t, `
	<h3>Histórico</h3>
	<table>
		<thead>
			<tr><th>Data Assinatura</th><th>Número</th><th>Tipo</th><th>Observação</th>
			<th>Data Início</th><th>Data Fim</th><th>Vlr. Global</th><th>Parcelas</th><th>Vlr. Parcela</th></tr>
		</thead>
		<tbody>
			<tr><td>01/02/2024</td><td>00001/2024</td><td>Contrato</td><td></td>
			<td>01/02/2024</td><td>31/01/2025</td><td>R$ 120.000,00</td><td>12</td><td>R$ 10.000,00</td></tr>
		</tbody>
	</table>`)

	rows := extractTableByHeader(doc, historyColumns)
	require.Len(t, rows, 1)

	entry := normalizeHistoryRow(rows[0])
	require.Equal(t, strptr("2024-02-01"), entry.DataAssinatura)
	require.Equal(t, strptr("2025-01-31"), entry.DataFim)
	require.Nil(t, entry.Observacao)
	require.True(t, entry.ValorGlobal.Equal(parseDecimal(t, "120000")))
	require.True(t, entry.ValorParcela.Equal(parseDecimal(t, "10000")))
	require.Equal(t, strptr("12"), entry.Parcelas)
}
