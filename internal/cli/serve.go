package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oseghale/riskradar/internal/llm"
	"github.com/oseghale/riskradar/internal/server"
	"github.com/oseghale/riskradar/internal/store"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP scan trigger",
	Long: `Serve exposes POST /api/scan for scheduled (cron) or manual scan
triggers. The request body may carry an organization id; otherwise the
bearer token is used, falling back to the first known organization.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	st, err := store.Open(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var classifier llm.Provider
	if cfg.LLM.APIKey != "" {
		classifier, err = llm.NewProvider(cfg.LLM)
		if err != nil {
			return fmt.Errorf("configure classifier: %w", err)
		}
	} else {
		fmt.Fprintln(os.Stderr, "Warning: no OPENAI_API_KEY set; cache misses will fail and retry")
	}

	fmt.Fprintf(os.Stderr, "Listening on %s\n", cfg.Server.Addr)
	return server.New(cfg, st, classifier).Run()
}
