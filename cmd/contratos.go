package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var errMissingInputFile = errors.New("arquivo base de contratos não encontrado")

var historyColumns = []string{
	"Data Assinatura", "Número", "Tipo", "Observação", "Data Início",
	"Data Fim", "Vlr. Global", "Parcelas", "Vlr. Parcela",
}

var responsibleColumns = []string{"CPF", "Nome", "Tipo"}

// contractRef is the slice of the upstream contracts artifact this pipeline
// needs: the business key and the validity end date.
type contractRef struct {
	NumeroContrato    string  `json:"numeroContrato"`
	DataVigenciaFinal *string `json:"dataVigenciaFinal"`
}

type contractsInput struct {
	Dados []contractRef `json:"dados"`
}

// HistoryEntry is one normalized row of a contract's history table.
type HistoryEntry struct {
	DataAssinatura *string         `json:"data_assinatura"`
	Numero         *string         `json:"numero"`
	Tipo           *string         `json:"tipo"`
	Observacao     *string         `json:"observacao"`
	DataInicio     *string         `json:"data_inicio"`
	DataFim        *string         `json:"data_fim"`
	ValorGlobal    decimal.Decimal `json:"valor_global"`
	Parcelas       *string         `json:"parcelas"`
	ValorParcela   decimal.Decimal `json:"valor_parcela"`
}

// ResponsibleEntry is one normalized row of the responsible-parties table.
type ResponsibleEntry struct {
	CPF  *string `json:"cpf"`
	Nome *string `json:"nome"`
	Tipo *string `json:"tipo"`
}

// ContractHistory groups a contract's history rows under its business key.
// An empty list is a valid, common outcome.
type ContractHistory struct {
	NumeroContrato string         `json:"numero_contrato"`
	Historico      []HistoryEntry `json:"historico"`
}

type ContractResponsibles struct {
	NumeroContrato string             `json:"numero_contrato"`
	Responsaveis   []ResponsibleEntry `json:"responsaveis"`
}

func normalizeHistoryRow(row map[string]string) HistoryEntry {
	return HistoryEntry{
		DataAssinatura: parseDate(row["Data Assinatura"]),
		Numero:         nullable(stripMarkup(row["Número"])),
		Tipo:           nullable(stripMarkup(row["Tipo"])),
		Observacao:     nullable(stripMarkup(row["Observação"])),
		DataInicio:     parseDate(row["Data Início"]),
		DataFim:        parseDate(row["Data Fim"]),
		ValorGlobal:    parseCurrency(row["Vlr. Global"]),
		Parcelas:       nullable(stripMarkup(row["Parcelas"])),
		ValorParcela:   parseCurrency(row["Vlr. Parcela"]),
	}
}

func normalizeResponsibleRow(row map[string]string) ResponsibleEntry {
	return ResponsibleEntry{
		CPF:  nullable(stripMarkup(row["CPF"])),
		Nome: nullable(stripMarkup(row["Nome"])),
		Tipo: nullable(stripMarkup(row["Tipo"])),
	}
}

// loadCurrentContracts reads the upstream contracts artifact and returns the
// deduplicated, sorted contract numbers still in force on the reference
// date: no end date, or an end date today or later. This filter decides
// fetch volume, so it lives with the pipeline rather than the caller.
func loadCurrentContracts(path string, today time.Time) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s (gere data/contratos.json com a coleta de contratos antes)", errMissingInputFile, path)
		}
		return nil, err
	}
	var input contractsInput
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, err
	}

	y, m, d := today.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	seen := make(map[string]struct{})
	var current []string
	for _, ref := range input.Dados {
		if ref.NumeroContrato == "" {
			continue
		}
		if ref.DataVigenciaFinal != nil {
			end, err := time.Parse("2006-01-02", truncateISODate(*ref.DataVigenciaFinal))
			if err == nil && end.Before(day) {
				continue
			}
		}
		if _, ok := seen[ref.NumeroContrato]; ok {
			continue
		}
		seen[ref.NumeroContrato] = struct{}{}
		current = append(current, ref.NumeroContrato)
	}
	sort.Strings(current)
	return current, nil
}

// Timestamps sometimes arrive with a time suffix; only the date matters.
func truncateISODate(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

var historicoCmd = &cobra.Command{
	Use:   "historico",
	Short: "Coleta histórico e responsáveis dos contratos vigentes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := resolvePortalConfig(cmd)
		return runWithBoundary(cfg.DataDir, "historico", func() error {
			return runHistorico(cmd.Context(), cfg)
		})
	},
}

func init() {
	rootCmd.AddCommand(historicoCmd)
}

func runHistorico(ctx context.Context, cfg portalConfig) error {
	color.Cyan("Coletando histórico e responsáveis dos contratos vigentes...")

	contracts, err := loadCurrentContracts(filepath.Join(cfg.DataDir, "contratos.json"), time.Now())
	if err != nil {
		return err
	}
	color.White("Contratos vigentes a processar: %d", len(contracts))

	histories := make([]ContractHistory, 0)
	responsibles := make([]ContractResponsibles, 0)

	if len(contracts) > 0 {
		session := newPortalSession(cfg, "contratos")
		exec := newRequestExecutor(session.client, cfg.MaxAttempts, cfg.BaseDelay)
		if err := session.open(ctx, exec); err != nil {
			return err
		}
		resolver := newIDResolver(session, exec)

		for i, numero := range contracts {
			color.White("[%d/%d] contrato %s", i+1, len(contracts), numero)
			internalID := resolver.resolve(ctx, numero)
			if internalID == "" {
				color.Yellow("  id interno não encontrado para %s", numero)
				if err := sleepWithContext(ctx, withJitter(cfg.BaseDelay)); err != nil {
					return err
				}
				continue
			}

			doc, err := fetchDetailDocument(ctx, session, exec, internalID)
			if err != nil {
				color.Yellow("  detalhe indisponível para %s: %v", numero, err)
				continue
			}

			history := make([]HistoryEntry, 0)
			for _, row := range extractTableByHeader(doc, historyColumns) {
				history = append(history, normalizeHistoryRow(row))
			}
			parties := make([]ResponsibleEntry, 0)
			for _, row := range extractTableByHeader(doc, responsibleColumns) {
				parties = append(parties, normalizeResponsibleRow(row))
			}

			histories = append(histories, ContractHistory{NumeroContrato: numero, Historico: history})
			responsibles = append(responsibles, ContractResponsibles{NumeroContrato: numero, Responsaveis: parties})

			if err := sleepWithContext(ctx, withJitter(cfg.BaseDelay)); err != nil {
				return err
			}
		}
	}

	historyPath := filepath.Join(cfg.DataDir, "historico.json")
	if err := writeResultFile(historyPath, len(histories), histories); err != nil {
		return err
	}
	responsiblesPath := filepath.Join(cfg.DataDir, "responsaveis.json")
	if err := writeResultFile(responsiblesPath, len(responsibles), responsibles); err != nil {
		return err
	}

	catalog, err := openRunCatalog(cfg.ArchiveDir)
	if err != nil {
		return err
	}
	defer catalog.close()
	if err := catalog.recordRun("historico", historyPath, len(histories)); err != nil {
		return err
	}
	if err := catalog.recordRun("responsaveis", responsiblesPath, len(responsibles)); err != nil {
		return err
	}

	color.Green("Concluído: %d contratos com detalhe coletado", len(histories))
	return nil
}

// fetchDetailDocument loads and parses one contract detail page.
func fetchDetailDocument(ctx context.Context, session *portalSession, exec *requestExecutor, internalID string) (*goquery.Document, error) {
	resp, err := exec.execute(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, session.detailURL(internalID), nil)
		if err != nil {
			return nil, err
		}
		session.setBrowserHeaders(req)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return goquery.NewDocumentFromReader(resp.Body)
}
