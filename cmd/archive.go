package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/snappy"
)

// invoiceArchive keeps a columnar copy of every normalized invoice row,
// partitioned by emission month under <baseDir>/arquivo, with file paths
// and row counts indexed in the catalog database for fast discovery.
type invoiceArchive struct {
	baseDir string
	db      *sql.DB
}

type archiveRow struct {
	Month          string  `parquet:"mes"`
	Orgao          string  `parquet:"orgao"`
	Contrato       string  `parquet:"contrato"`
	FornecedorCNPJ string  `parquet:"fornecedor_cnpj"`
	FornecedorNome string  `parquet:"fornecedor_nome"`
	NumeroFatura   string  `parquet:"numero_fatura"`
	Situacao       string  `parquet:"situacao"`
	ValorOriginal  float64 `parquet:"valor_original"`
	ValorFinal     float64 `parquet:"valor_final"`
	EmissaoEpochMS int64   `parquet:"emissao_epoch_ms"`
}

func newInvoiceArchive(baseDir string, db *sql.DB) *invoiceArchive {
	return &invoiceArchive{baseDir: baseDir, db: db}
}

func (a *invoiceArchive) ensureSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS arquivos_parquet (
		path TEXT PRIMARY KEY,
		mes TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_arquivos_mes ON arquivos_parquet(mes);
	`
	_, err := a.db.Exec(schema)
	return err
}

// writeRows appends records to the archive, one parquet part per emission
// month touched by this batch.
func (a *invoiceArchive) writeRows(records []InvoiceRecord) error {
	byMonth := make(map[string][]archiveRow)
	for _, rec := range records {
		row := toArchiveRow(rec)
		byMonth[row.Month] = append(byMonth[row.Month], row)
	}
	for month, rows := range byMonth {
		if err := a.writePart(month, rows); err != nil {
			return err
		}
	}
	return nil
}

func (a *invoiceArchive) writePart(month string, rows []archiveRow) error {
	dir := filepath.Join(a.baseDir, "arquivo", fmt.Sprintf("mes=%s", month))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("part-%d.parquet", time.Now().UnixNano()))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := parquet.NewGenericWriter[archiveRow](f, parquet.Compression(&snappy.Codec{}))
	if _, err := w.Write(rows); err != nil {
		_ = w.Close()
		_ = f.Close()
		return err
	}
	if err := w.Close(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_, err = a.db.Exec(
		"INSERT OR REPLACE INTO arquivos_parquet(path, mes, row_count, created_at) VALUES(?, ?, ?, ?)",
		path, month, len(rows), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func toArchiveRow(rec InvoiceRecord) archiveRow {
	emissao := time.Now().UTC()
	if rec.DataEmissao != nil {
		if t, err := time.Parse("2006-01-02", *rec.DataEmissao); err == nil {
			emissao = t
		}
	}
	return archiveRow{
		Month:          emissao.Format("2006-01"),
		Orgao:          deref(rec.Orgao),
		Contrato:       deref(rec.Contrato),
		FornecedorCNPJ: deref(rec.FornecedorCNPJ),
		FornecedorNome: deref(rec.FornecedorNome),
		NumeroFatura:   deref(rec.NumeroFatura),
		Situacao:       rec.Situacao,
		ValorOriginal:  rec.ValorOriginal.InexactFloat64(),
		ValorFinal:     rec.ValorFinal.InexactFloat64(),
		EmissaoEpochMS: emissao.UnixMilli(),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// rebuildIndex drops the file index and reconstructs it by walking the
// archive directory, so a catalog lost or moved out of sync with the files
// can always be recovered.
func (a *invoiceArchive) rebuildIndex(ctx context.Context) error {
	if err := a.ensureSchema(); err != nil {
		return err
	}
	if _, err := a.db.ExecContext(ctx, "DELETE FROM arquivos_parquet"); err != nil {
		return err
	}
	root := filepath.Join(a.baseDir, "arquivo")
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".parquet") {
			return nil
		}
		rows, countErr := countArchiveRows(path)
		if countErr != nil {
			return nil
		}
		_, _ = a.db.ExecContext(ctx,
			"INSERT OR REPLACE INTO arquivos_parquet(path, mes, row_count, created_at) VALUES(?, ?, ?, ?)",
			path, monthFromArchivePath(path), rows, time.Now().UTC().Format(time.RFC3339),
		)
		return nil
	})
}

func monthFromArchivePath(path string) string {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.HasPrefix(part, "mes=") {
			return strings.TrimPrefix(part, "mes=")
		}
	}
	return ""
}

// countArchiveRows counts rows in one parquet part.
func countArchiveRows(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if info.Size() == 0 {
		return 0, nil
	}
	r := parquet.NewGenericReader[archiveRow](f)
	defer r.Close()

	var rows int64
	buf := make([]archiveRow, 1024)
	for {
		n, readErr := r.Read(buf)
		rows += int64(n)
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return rows, readErr
		}
	}
	return rows, nil
}
