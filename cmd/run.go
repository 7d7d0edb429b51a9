package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/internal/pipeline"
	"github.com/sells-group/audit-cli/internal/store"
)

var (
	runCompany string
	runDomain  string
	runDeal    string
	runStage   string
	runCountry string
	runTeam    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Audit a single company",
	Long: `Runs the full audit for one company and prints the outcome as JSON.

The audit completes even when individual stages degrade; check the
errors map in the output for stages that fell back. A non-zero exit
means the run itself could not finish.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initAudit(ctx, "audit")
		if err != nil {
			return err
		}
		defer env.Close()

		team, err := loadSalesTeam(runTeam)
		if err != nil {
			return err
		}

		out, err := env.Pipeline.Run(ctx, pipeline.Request{
			DealID:      runDeal,
			StageID:     runStage,
			CompanyName: runCompany,
			Domain:      runDomain,
			Country:     runCountry,
			SalesTeam:   team,
		})
		if err != nil {
			return eris.Wrap(err, "audit run")
		}

		log := zap.L().With(zap.String("company", runCompany))
		log.Info("audit complete",
			zap.String("run_id", out.RunID),
			zap.String("status", string(out.Status)),
			zap.String("verdict", out.Verdict),
			zap.Int("degraded_stages", len(out.Errors)),
		)
		if out.Status == store.RunStatusCompletedWithErrors {
			log.Warn("audit degraded, some stages fell back",
				zap.Any("errors", out.Errors),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

// loadSalesTeam reads the optional sales team roster used by the
// connections unit.
func loadSalesTeam(path string) ([]pipeline.TeamMember, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read sales team file")
	}
	var team []pipeline.TeamMember
	if err := json.Unmarshal(data, &team); err != nil {
		return nil, eris.Wrap(err, "parse sales team file")
	}
	return team, nil
}

func init() {
	runCmd.Flags().StringVar(&runCompany, "company", "", "company name (required)")
	runCmd.Flags().StringVar(&runDomain, "domain", "", "company website domain")
	runCmd.Flags().StringVar(&runDeal, "deal", "", "CRM deal ID for the note sink")
	runCmd.Flags().StringVar(&runStage, "stage", "", "CRM pipeline stage ID")
	runCmd.Flags().StringVar(&runCountry, "country", "", "company country (default from config)")
	runCmd.Flags().StringVar(&runTeam, "sales-team", "", "path to a JSON file with the sales team roster")
	_ = runCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(runCmd)
}
