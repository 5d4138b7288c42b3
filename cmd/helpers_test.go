package cmd

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, baseURL string) portalConfig {
	t.Helper()
	return portalConfig{
		BaseURL:     baseURL,
		Orgao:       "32205",
		PageLength:  100,
		MaxPages:    200,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Timeout:     5 * time.Second,
		DataDir:     t.TempDir(),
		ArchiveDir:  t.TempDir(),
	}
}

func tokenPage(token string) string {
	return fmt.Sprintf(`<html><head><meta name="csrf-token" content="%s"></head><body></body></html>`, token)
}

func parseDecimal(t *testing.T, v string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(v)
	require.NoError(t, err)
	return d
}

func strptr(s string) *string {
	return &s
}
