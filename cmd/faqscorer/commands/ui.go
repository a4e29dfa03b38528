package commands

import (
	"github.com/spf13/cobra"

	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/ui"
)

var (
	themeFlag     string
	exportDirFlag string
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the interactive terminal UI (default)",
	Args:  cobra.NoArgs,
	RunE:  runUI,
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, uiCmd} {
		c.Flags().StringVar(&themeFlag, "theme", "", "Color theme: "+joinNames(ui.ThemeNames()))
		c.Flags().StringVar(&exportDirFlag, "export-dir", ".", "Directory receiving e/E exports")
	}
}

func runUI(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	c, err := rt.cache(ctx)
	if err != nil {
		return err
	}
	cfg := rt.cfg
	if themeFlag != "" {
		cfg.Theme = themeFlag
	}
	return ui.Run(ctx, ui.Deps{
		Config:     cfg,
		NewBackend: func(baseURL string) ui.Backend { return rt.client(baseURL) },
		Cache:      c,
		History:    rt.history(ctx),
		Log:        rt.log,
		Ring:       rt.ring,
		ExportDir:  exportDirFlag,
		Version:    Version,
	})
}
