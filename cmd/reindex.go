package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// reindexCmd rebuilds the parquet index by scanning the archive directory.
var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Reconstrói o índice do arquivo parquet a partir dos arquivos em disco",
	RunE: func(cmd *cobra.Command, args []string) error {
		archiveDir, _ := cmd.Flags().GetString("archive-dir")
		catalog, err := openRunCatalog(archiveDir)
		if err != nil {
			return err
		}
		defer catalog.close()

		if err := catalog.archive.rebuildIndex(cmd.Context()); err != nil {
			return err
		}
		color.Green("Índice do arquivo reconstruído")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}
