package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/clauseguard/internal/pipeline"
)

var (
	outJSON string
	outMD   string
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit <contract>",
	Short: "Audit one contract against the configured policy matrices",
	Long: `Audit screens a single contract to:
- Find prohibited language from the policy matrices (exact and fuzzy)
- Report required clauses missing from the contract
- Optionally flag paraphrased clauses with an AI classifier
- Rank findings by severity and compute a risk index

The contract may be a .txt/.md/.html file, an http(s) URL, or "-" for stdin.
PDF and Word documents must be converted to text first; with --pages, form
feeds in the text mark page breaks.

Example:
  clauseguard audit agreement.txt --rules government=gov.xlsx --rules institution=inst.csv
  clauseguard audit agreement.txt --rules inst.xlsx --json report.json --md report.md
  clauseguard audit agreement.txt --rules inst.xlsx --ai --ai-provider openai --ai-model gpt-4o-mini`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	// Output flags
	auditCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	auditCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	auditCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall audit timeout (increase for AI runs on long contracts)")

	addDetectionFlags(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	location := args[0]
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Auditing: %s\n", location)
		fmt.Fprintf(os.Stderr, "Rule sources: %d\n", len(cfg.Rules.Sources))
		fmt.Fprintf(os.Stderr, "Cache: %v\n", cfg.Cache.Enabled)
		if cfg.AI.Enabled {
			fmt.Fprintf(os.Stderr, "AI: %s %s\n", cfg.AI.Provider, cfg.AI.Model)
		}
		fmt.Fprintln(os.Stderr)
	}

	p := pipeline.NewPipeline(cfg)

	var req pipeline.AuditRequest
	if location == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		req = pipeline.AuditRequest{Subject: "stdin", Text: string(data)}
	} else {
		req, err = p.LoadContract(ctx, location)
		if err != nil {
			return fmt.Errorf("load contract: %w", err)
		}
	}

	report, err := p.Audit(ctx, req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("audit incomplete after %v: %w", timeout, err)
		}
		return fmt.Errorf("audit failed: %w", err)
	}

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "✓ Loaded %d rules from %d tables\n", report.RuleStats.Loaded, report.RuleStats.Tables)
		fmt.Fprintf(os.Stderr, "✓ Found %d issues\n", report.Summary.Total)
		if report.AI != nil && !report.AI.Degraded {
			fmt.Fprintf(os.Stderr, "✓ Classified %d candidate paragraphs using %s\n", report.AI.Candidates, report.AI.Provider)
		}
		fmt.Fprintln(os.Stderr)
	}

	if err := p.RenderReport(report, outJSON, outMD, cfg.Output.Verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	return nil
}
