package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/oseghale/riskradar/internal/llm"
	"github.com/oseghale/riskradar/internal/pipeline"
	"github.com/oseghale/riskradar/internal/store"
)

var (
	scanOrgID   string
	scanToken   string
	scanTimeout time.Duration
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan invocation for an organization",
	Long: `Scan fetches every enabled feed for the organization, filters and
deduplicates the items, scores them for relevance, consults the shared
and private classification caches, classifies cache misses with the AI
provider, and writes advisory alerts.

Example:
  riskradar scan --org 7d4c9f
  riskradar scan            # unattended: first known organization`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanOrgID, "org", "", "organization id (default: resolve from token, then first known)")
	scanCmd.Flags().StringVar(&scanToken, "token", "", "auth token used to resolve the organization")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 10*time.Minute, "overall scan timeout")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

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
	} else if verbose {
		fmt.Fprintln(os.Stderr, "No OPENAI_API_KEY set; cache misses will be retried on later runs")
	}

	org, err := pipeline.ResolveOrganization(ctx, st, scanOrgID, scanToken)
	if err != nil {
		return fmt.Errorf("resolve organization: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Scanning for %s (%s)\n", org.Name, org.InstitutionType)
	}

	summary := pipeline.New(cfg, st, classifier).Run(ctx, org)

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	fmt.Println(string(out))

	if !summary.Success {
		return fmt.Errorf("scan failed: %s", summary.Error)
	}
	return nil
}
