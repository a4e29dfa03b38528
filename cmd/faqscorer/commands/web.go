package commands

import (
	"github.com/spf13/cobra"

	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/web"
)

var listenFlag string

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve the FAQ dashboard over HTTP",
	Long: `web serves the same dashboard as the terminal UI as server-rendered HTML,
with JSON and CSV exports and a /healthz probe.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		c, err := rt.cache(ctx)
		if err != nil {
			return err
		}
		srv, err := web.NewServer(web.Deps{
			Backend: rt.client(rt.cfg.BackendURL),
			Cache:   c,
			History: rt.history(ctx),
			Log:     rt.log,
			Version: Version,
		})
		if err != nil {
			return err
		}
		addr := rt.cfg.WebListen
		if listenFlag != "" {
			addr = listenFlag
		}
		return srv.Run(ctx, addr)
	},
}

func init() {
	webCmd.Flags().StringVar(&listenFlag, "listen", "", "Listen address (default from settings, :8501)")
}
