package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/clauseguard/internal/model"
	"github.com/ppiankov/clauseguard/internal/pipeline"
)

var rulesJSON bool

// rulesCmd represents the rules command
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the policy rules loaded from the configured matrices",
	Long: `Rules loads the configured policy matrices exactly as an audit would and
prints every actionable rule with its risk, acceptance status and checks.
Load statistics show how many rows were skipped as acceptable or dropped as
not actionable.

Example:
  clauseguard rules --rules government=gov.xlsx --rules institution=inst.csv
  clauseguard rules --rules inst.xlsx --json > rules.json`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)

	rulesCmd.Flags().BoolVar(&rulesJSON, "json", false, "print rules as JSON to stdout")
	addRuleFlags(rulesCmd)
}

func runRules(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	loaded, stats, err := pipeline.NewPipeline(cfg).RuleSet(context.Background())
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	if rulesJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Rules []model.PolicyRule `json:"rules"`
			Stats model.RuleStats    `json:"stats"`
		}{Rules: loaded, Stats: stats})
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSOURCE\tCATEGORY\tRISK\tSTATUS\tCHECKS")
	for _, r := range loaded {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Source, truncateCell(r.Category, 32), r.Risk, r.AcceptanceStatus, checks(r))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n%d rules loaded from %d tables (%d rows; %d marked OK, %d not actionable)\n",
		stats.Loaded, stats.Tables, stats.Rows, stats.SkippedOK, stats.Dropped)
	return nil
}

// checks describes what the detector will look for
func checks(r model.PolicyRule) string {
	var s string
	if n := len(r.ProhibitedPatterns); n > 0 {
		s = fmt.Sprintf("%d prohibited", n)
	}
	if r.RequirementText != "" {
		if s != "" {
			s += ", "
		}
		s += "required clause"
	}
	return s
}

func truncateCell(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
