package cmd

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// runCatalog is a lightweight SQLite catalog next to the parquet archive:
// one row per completed scrape plus an index of archive files. The
// contract-id cache deliberately does not live here; that mapping is only
// trusted within a single run.
type runCatalog struct {
	baseDir string
	db      *sql.DB
	archive *invoiceArchive
}

func openRunCatalog(baseDir string) (*runCatalog, error) {
	if baseDir == "" {
		baseDir = defaultArchiveDir()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filepath.Join(baseDir, "catalogo.sqlite"))
	if err != nil {
		return nil, err
	}
	cat := &runCatalog{baseDir: baseDir, db: db}
	cat.archive = newInvoiceArchive(baseDir, db)
	if err := cat.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return cat, nil
}

func (c *runCatalog) ensureSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS coletas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dataset TEXT NOT NULL,
		artifact_path TEXT NOT NULL,
		record_count INTEGER NOT NULL,
		finished_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_coletas_dataset ON coletas(dataset);
	`
	if _, err := c.db.Exec(schema); err != nil {
		return err
	}
	return c.archive.ensureSchema()
}

func (c *runCatalog) recordRun(dataset, artifactPath string, recordCount int) error {
	_, err := c.db.Exec(
		"INSERT INTO coletas(dataset, artifact_path, record_count, finished_at) VALUES(?, ?, ?, ?)",
		dataset, artifactPath, recordCount, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// lastRun returns when the dataset was last collected, zero when never.
func (c *runCatalog) lastRun(dataset string) (time.Time, error) {
	row := c.db.QueryRow("SELECT finished_at FROM coletas WHERE dataset = ? ORDER BY id DESC LIMIT 1", dataset)
	var ts string
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, ts)
}

func (c *runCatalog) archiveInvoices(records []InvoiceRecord) error {
	return c.archive.writeRows(records)
}

func (c *runCatalog) close() {
	if c.db != nil {
		_ = c.db.Close()
	}
}
