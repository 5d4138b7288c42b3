package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const (
	defaultOrgao       = "32205"
	defaultPageLength  = 100
	defaultMaxPages    = 200
	defaultMaxRetries  = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultHTTPTimeout = 30 * time.Second
)

// portalConfig carries everything the pipelines need. Configuration is
// resolved here at the command edge; pipeline code never reads the
// environment itself.
type portalConfig struct {
	BaseURL     string
	Orgao       string
	PageLength  int
	MaxPages    int
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration
	DataDir     string
	ArchiveDir  string
}

var rootCmd = &cobra.Command{
	Use:   "coletor",
	Short: "Coleta dados de transparência do Comprasnet",
	Long:  `Coletor CLI que raspa faturas, histórico e responsáveis de contratos do portal de transparência do Comprasnet e gera artefatos JSON normalizados`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("orgao", envOrDefault("ORGAO_CODIGO", defaultOrgao), "Código do órgão a coletar")
	rootCmd.PersistentFlags().String("base-url", envOrDefault("COMPRASNET_BASE_URL", defaultBaseURL), "URL base do portal de transparência")
	rootCmd.PersistentFlags().Duration("delay", envDurationOrDefault("REQUEST_DELAY", defaultBaseDelay), "Intervalo base entre requisições")
	rootCmd.PersistentFlags().Int("retries", envIntOrDefault("MAX_RETRIES", defaultMaxRetries), "Tentativas máximas por requisição")
	rootCmd.PersistentFlags().Duration("timeout", envDurationOrDefault("TIMEOUT", defaultHTTPTimeout), "Timeout por requisição")
	rootCmd.PersistentFlags().Int("page-length", defaultPageLength, "Tamanho de página da busca AJAX")
	rootCmd.PersistentFlags().Int("max-pages", defaultMaxPages, "Teto de páginas por coleta (limite de segurança)")
	rootCmd.PersistentFlags().String("data-dir", "data", "Diretório dos artefatos JSON")
	rootCmd.PersistentFlags().String("archive-dir", defaultArchiveDir(), "Diretório do arquivo parquet e do catálogo sqlite")
}

func resolvePortalConfig(cmd *cobra.Command) portalConfig {
	orgao, _ := cmd.Flags().GetString("orgao")
	baseURL, _ := cmd.Flags().GetString("base-url")
	delay, _ := cmd.Flags().GetDuration("delay")
	retries, _ := cmd.Flags().GetInt("retries")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	pageLength, _ := cmd.Flags().GetInt("page-length")
	maxPages, _ := cmd.Flags().GetInt("max-pages")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	archiveDir, _ := cmd.Flags().GetString("archive-dir")
	return portalConfig{
		BaseURL:     baseURL,
		Orgao:       orgao,
		PageLength:  pageLength,
		MaxPages:    maxPages,
		MaxAttempts: retries,
		BaseDelay:   delay,
		Timeout:     timeout,
		DataDir:     dataDir,
		ArchiveDir:  archiveDir,
	}
}

func envOrDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envDurationOrDefault(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func defaultArchiveDir() string {
	if dir := os.Getenv("COMPRASNET_ARCHIVE_DIR"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home + "/.cache/comprasnet"
	}
	return ".cache/comprasnet"
}
