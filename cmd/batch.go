package main

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/audit-cli/internal/pipeline"
)

var (
	batchCSV         string
	batchLimit       int
	batchConcurrency int
	batchDryRun      bool
	batchOutput      string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Audit every company in a CRM deal export",
	Long: `Reads a deal CSV (columns: deal_id, stage_id, company_name, domain,
country) and runs one audit per row.

Examples:
  # Parse only, print the requests
  audit-cli batch --csv deals.csv --dry-run

  # Audit the first five deals, two at a time
  audit-cli batch --csv deals.csv --limit 5 --concurrency 2`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		requests, err := pipeline.ParseDealsCSV(batchCSV)
		if err != nil {
			return err
		}
		zap.L().Info("parsed deal csv", zap.Int("deals", len(requests)))

		if batchLimit > 0 && batchLimit < len(requests) {
			requests = requests[:batchLimit]
		}

		if batchDryRun {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(requests)
		}

		env, err := initAudit(ctx, "audit")
		if err != nil {
			return err
		}
		defer env.Close()

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(batchConcurrency)

		var mu sync.Mutex
		var outcomes []*pipeline.Outcome
		var succeeded, failed atomic.Int64

		for i, req := range requests {
			g.Go(func() error {
				zap.L().Info("batch: audit starting",
					zap.Int("n", i+1),
					zap.Int("total", len(requests)),
					zap.String("company", req.CompanyName),
					zap.String("domain", req.Domain),
				)

				out, runErr := env.Pipeline.Run(gCtx, req)
				if runErr != nil {
					failed.Add(1)
					zap.L().Error("batch: audit failed",
						zap.String("company", req.CompanyName),
						zap.Error(runErr),
					)
					// One dead audit must not sink the batch.
					return nil
				}

				succeeded.Add(1)
				zap.L().Info("batch: audit complete",
					zap.String("company", req.CompanyName),
					zap.String("verdict", out.Verdict),
					zap.String("status", string(out.Status)),
				)
				mu.Lock()
				outcomes = append(outcomes, out)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		zap.L().Info("batch complete",
			zap.Int("total", len(requests)),
			zap.Int64("succeeded", succeeded.Load()),
			zap.Int64("failed", failed.Load()),
		)

		return writeOutcomes(outcomes, batchOutput)
	},
}

// writeOutcomes writes the batch results to the output file or stdout.
func writeOutcomes(outcomes []*pipeline.Outcome, path string) error {
	w := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrap(err, "batch: create output file")
		}
		defer f.Close() //nolint:errcheck
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(outcomes)
}

func init() {
	batchCmd.Flags().StringVar(&batchCSV, "csv", "", "path to the deal CSV file (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max deals to audit (0 = all)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 2, "audits to run concurrently")
	batchCmd.Flags().BoolVar(&batchDryRun, "dry-run", false, "parse the csv and print requests, skip the audits")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "write outcomes JSON to file (default: stdout)")
	_ = batchCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(batchCmd)
}
