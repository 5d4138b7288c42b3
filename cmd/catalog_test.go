package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunCatalogRecordAndLastRun(t *testing.T) {
	catalog, err := openRunCatalog(t.TempDir())
	require.NoError(t, err)
	defer catalog.close()

	last, err := catalog.lastRun("faturas")
	require.NoError(t, err)
	require.True(t, last.IsZero())

	require.NoError(t, catalog.recordRun("faturas", "data/faturas_anp.json", 10))
	require.NoError(t, catalog.recordRun("faturas", "data/faturas_anp.json", 25))
	require.NoError(t, catalog.recordRun("historico", "data/historico.json", 3))

	last, err = catalog.lastRun("faturas")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), last, time.Minute)

	var count int
	row := catalog.db.QueryRow("SELECT record_count FROM coletas WHERE dataset = ? ORDER BY id DESC LIMIT 1", "faturas")
	require.NoError(t, row.Scan(&count))
	require.Equal(t, 25, count)
}

func TestRunCatalogReopens(t *testing.T) {
	dir := t.TempDir()

	catalog, err := openRunCatalog(dir)
	require.NoError(t, err)
	require.NoError(t, catalog.recordRun("faturas", "data/faturas_anp.json", 7))
	catalog.close()

	catalog, err = openRunCatalog(dir)
	require.NoError(t, err)
	defer catalog.close()
	last, err := catalog.lastRun("faturas")
	require.NoError(t, err)
	require.False(t, last.IsZero())
}
