package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/store"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := rt.cfg
		source := string(rt.backend.Source)
		if rt.backend.Path != "" {
			source += " (" + rt.backend.Path + ")"
		}
		dsn := cfg.HistoryDSN
		if dsn == "" {
			dsn = store.DefaultDSN
		}
		rows := map[string]string{
			"backend_url":     cfg.BackendURL,
			"backend_source":  source,
			"timeout":         cfg.Timeout.String(),
			"cache.ttl":       cfg.CacheTTL.String(),
			"cache.size":      fmt.Sprint(cfg.CacheSize),
			"cache.redis":     orNone(cfg.RedisAddr),
			"log.level":       cfg.LogLevel,
			"log.file":        cfg.LogFile,
			"theme":           cfg.Theme,
			"history.enabled": fmt.Sprint(cfg.HistoryEnabled),
			"history.dsn":     dsn,
			"web.listen":      cfg.WebListen,
		}
		keys := make([]string, 0, len(rows))
		for k := range rows {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", k, rows[k])
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "faqscorer %s\n", Version)
	},
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
