package cmd

import (
	"context"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/leekchan/accounting"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// faturaColumns is the fixed positional schema of the invoice search
// endpoint: every row in the AJAX response aligns cell-by-cell with this
// list.
var faturaColumns = []string{
	"Órgão", "UG", "Fornecedor", "Contrato", "Fundamento Legal",
	"Objeto", "Observação", "Número da Fatura", "Data Emissão",
	"Data Recebimento", "Data Vencimento", "Data Pagamento",
	"Valor Original", "Retenção", "Glosa", "Deduções", "Valor Final",
	"Processo", "Data Referência", "Sub-Rogação", "Indício de Sobrepreço",
	"Mês", "Ano", "Situação", "Data Última Atualização",
}

// InvoiceRecord is a normalized invoice row. Every schema field is always
// present in the serialized form; absent values are explicit nulls, never
// omitted keys.
type InvoiceRecord struct {
	Orgao                 *string         `json:"orgao"`
	UG                    *string         `json:"ug"`
	FornecedorCNPJ        *string         `json:"fornecedor_cnpj"`
	FornecedorNome        *string         `json:"fornecedor_nome"`
	Contrato              *string         `json:"contrato"`
	FundamentoLegal       *string         `json:"fundamento_legal"`
	Objeto                *string         `json:"objeto"`
	Observacao            *string         `json:"observacao"`
	NumeroFatura          *string         `json:"numero_fatura"`
	DataEmissao           *string         `json:"data_emissao"`
	DataRecebimento       *string         `json:"data_recebimento"`
	DataVencimento        *string         `json:"data_vencimento"`
	DataPagamento         *string         `json:"data_pagamento"`
	ValorOriginal         decimal.Decimal `json:"valor_original"`
	Retencao              decimal.Decimal `json:"retencao"`
	Glosa                 decimal.Decimal `json:"glosa"`
	Deducoes              decimal.Decimal `json:"deducoes"`
	ValorFinal            decimal.Decimal `json:"valor_final"`
	Processo              *string         `json:"processo"`
	DataReferencia        *string         `json:"data_referencia"`
	SubRogacao            *string         `json:"sub_rogacao"`
	IndicioSobrepreco     *string         `json:"indicio_sobrepreco"`
	Mes                   *string         `json:"mes"`
	Ano                   *string         `json:"ano"`
	Situacao              string          `json:"situacao"`
	DataUltimaAtualizacao *string         `json:"data_ultima_atualizacao"`
}

// normalizeInvoiceRow maps one raw positional row onto the typed record.
// Missing trailing cells normalize the same way as empty ones, so a short
// row still yields a complete record.
func normalizeInvoiceRow(cells []string) InvoiceRecord {
	get := func(i int) string {
		if i < len(cells) {
			return stripMarkup(cells[i])
		}
		return ""
	}
	cnpj, nome := splitVendor(get(2))
	return InvoiceRecord{
		Orgao:                 nullable(get(0)),
		UG:                    nullable(get(1)),
		FornecedorCNPJ:        cnpj,
		FornecedorNome:        nome,
		Contrato:              nullable(get(3)),
		FundamentoLegal:       nullable(get(4)),
		Objeto:                nullable(get(5)),
		Observacao:            nullable(get(6)),
		NumeroFatura:          nullable(get(7)),
		DataEmissao:           parseDate(get(8)),
		DataRecebimento:       parseDate(get(9)),
		DataVencimento:        parseDate(get(10)),
		DataPagamento:         parseDate(get(11)),
		ValorOriginal:         parseCurrency(get(12)),
		Retencao:              parseCurrency(get(13)),
		Glosa:                 parseCurrency(get(14)),
		Deducoes:              parseCurrency(get(15)),
		ValorFinal:            parseCurrency(get(16)),
		Processo:              nullable(get(17)),
		DataReferencia:        parseDate(get(18)),
		SubRogacao:            nullable(get(19)),
		IndicioSobrepreco:     nullable(get(20)),
		Mes:                   nullable(get(21)),
		Ano:                   nullable(get(22)),
		Situacao:              canonicalizeStatus(get(23)),
		DataUltimaAtualizacao: parseDate(get(24)),
	}
}

var faturasCmd = &cobra.Command{
	Use:   "faturas",
	Short: "Coleta a listagem completa de faturas do órgão",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := resolvePortalConfig(cmd)
		return runWithBoundary(cfg.DataDir, "faturas", func() error {
			return runFaturas(cmd.Context(), cfg)
		})
	},
}

func init() {
	rootCmd.AddCommand(faturasCmd)
}

func runFaturas(ctx context.Context, cfg portalConfig) error {
	color.Cyan("Iniciando coleta de faturas do órgão %s...", cfg.Orgao)

	session := newPortalSession(cfg, "faturas")
	exec := newRequestExecutor(session.client, cfg.MaxAttempts, cfg.BaseDelay)
	if err := session.open(ctx, exec); err != nil {
		return err
	}

	records := make([]InvoiceRecord, 0)
	collector := &pageCollector{
		session:  session,
		exec:     exec,
		length:   cfg.PageLength,
		maxPages: cfg.MaxPages,
		onPage: func(page, count int) {
			color.White("  página %d, registros: %d", page, count)
		},
	}
	total, err := collector.collectAll(ctx, func(rows [][]string) error {
		for _, row := range rows {
			records = append(records, normalizeInvoiceRow(row))
		}
		return nil
	})
	if err != nil {
		return err
	}

	artifact := filepath.Join(cfg.DataDir, "faturas_anp.json")
	if err := writeResultFile(artifact, total, records); err != nil {
		return err
	}

	catalog, err := openRunCatalog(cfg.ArchiveDir)
	if err != nil {
		return err
	}
	defer catalog.close()
	if err := catalog.archiveInvoices(records); err != nil {
		return err
	}
	if err := catalog.recordRun("faturas", artifact, total); err != nil {
		return err
	}

	sum := decimal.Zero
	for _, rec := range records {
		sum = sum.Add(rec.ValorFinal)
	}
	ac := accounting.Accounting{Symbol: "R$ ", Precision: 2, Thousand: ".", Decimal: ","}
	color.Green("Concluído: %d faturas, valor final total %s", total, ac.FormatMoney(sum))
	return nil
}
