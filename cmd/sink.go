package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/fatih/color"
)

// resultPayload is the artifact envelope every scrape produces: a
// timestamp, a count and the normalized records. Downstream stages depend
// on this exact shape.
type resultPayload struct {
	UltimaAtualizacao string `json:"ultima_atualizacao"`
	TotalRegistros    int    `json:"total_registros"`
	Dados             any    `json:"dados"`
}

func writeResultFile(path string, count int, dados any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(resultPayload{
		UltimaAtualizacao: time.Now().Format(time.RFC3339),
		TotalRegistros:    count,
		Dados:             dados,
	})
}

// writeErrorArtifact records a fatal failure with its stack trace so the
// operator can diagnose a crashed run from the artifacts alone.
func writeErrorArtifact(dataDir, dataset string, runErr error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return
	}
	path := filepath.Join(dataDir, fmt.Sprintf("erro_%s.log", dataset))
	body := fmt.Sprintf("%s\n%s\n\n%s", time.Now().Format(time.RFC3339), runErr, debug.Stack())
	_ = os.WriteFile(path, []byte(body), 0o644)
}

// runWithBoundary is the single top-level failure boundary: a pipeline
// error is reported, persisted as an error artifact and propagated so the
// process exits non-zero. No silent exits.
func runWithBoundary(dataDir, dataset string, run func() error) error {
	if err := run(); err != nil {
		color.Red("coleta de %s falhou: %v", dataset, err)
		writeErrorArtifact(dataDir, dataset, err)
		return err
	}
	return nil
}
