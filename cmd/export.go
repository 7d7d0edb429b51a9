package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/internal/report"
	"github.com/sells-group/audit-cli/internal/store"
)

var (
	exportOutput string
	exportStatus string
	exportLimit  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit runs to an XLSX workbook",
	Long: `Writes run history to a two-sheet workbook: one row per run on
"Runs", one row per detected signal on "Signals". The account team
filters the signal sheet when preparing outreach.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: store.RunStatus(exportStatus),
			Limit:  exportLimit,
		})
		if err != nil {
			return eris.Wrap(err, "export: list runs")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs to export.")
			return nil
		}

		wb, err := buildWorkbook(runs)
		if err != nil {
			return err
		}
		if err := wb.Save(exportOutput); err != nil {
			return eris.Wrap(err, "export: save workbook")
		}

		zap.L().Info("export complete",
			zap.String("path", exportOutput),
			zap.Int("runs", len(runs)),
		)
		return nil
	},
}

// buildWorkbook renders runs into the two-sheet export layout.
func buildWorkbook(runs []store.Run) (*xlsx.File, error) {
	wb := xlsx.NewFile()

	runsSheet, err := wb.AddSheet("Runs")
	if err != nil {
		return nil, eris.Wrap(err, "export: add runs sheet")
	}
	addHeaderRow(runsSheet,
		"Run ID", "Company", "Domain", "Country", "Status", "Verdict",
		"Score", "Max", "Data Quality", "Deal ID", "Created", "Completed")

	for _, r := range runs {
		row := runsSheet.AddRow()
		row.AddCell().SetString(r.ID)
		row.AddCell().SetString(r.CompanyName)
		row.AddCell().SetString(r.Domain)
		row.AddCell().SetString(r.Country)
		row.AddCell().SetString(string(r.Status))
		row.AddCell().SetString(r.Verdict)
		row.AddCell().SetFloat(r.ScoreTotal)
		row.AddCell().SetInt(r.ScoreMax)
		row.AddCell().SetFloat(r.DataQuality)
		row.AddCell().SetString(r.DealID)
		row.AddCell().SetString(r.CreatedAt.Format("2006-01-02 15:04"))
		completed := ""
		if r.CompletedAt != nil {
			completed = r.CompletedAt.Format("2006-01-02 15:04")
		}
		row.AddCell().SetString(completed)
	}

	signalsSheet, err := wb.AddSheet("Signals")
	if err != nil {
		return nil, eris.Wrap(err, "export: add signals sheet")
	}
	addHeaderRow(signalsSheet,
		"Run ID", "Company", "Signal", "Unit", "Points", "Weighted", "Value", "Evidence")

	for _, r := range runs {
		if r.Scoring == nil {
			continue
		}
		for _, sig := range r.Scoring.Signals {
			if sig.Status != report.StatusDetected {
				continue
			}
			row := signalsSheet.AddRow()
			row.AddCell().SetString(r.ID)
			row.AddCell().SetString(r.CompanyName)
			row.AddCell().SetString(sig.SignalID)
			row.AddCell().SetString(sig.Unit)
			row.AddCell().SetInt(sig.BasePoints)
			row.AddCell().SetFloat(sig.WeightedPoints)
			row.AddCell().SetString(sig.Value)
			row.AddCell().SetString(sig.Evidence)
		}
	}

	return wb, nil
}

func addHeaderRow(sheet *xlsx.Sheet, titles ...string) {
	row := sheet.AddRow()
	for _, title := range titles {
		row.AddCell().SetString(title)
	}
}

func init() {
	exportCmd.Flags().StringVar(&exportOutput, "output", "audit-runs.xlsx", "output workbook path")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "filter by run status")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 1000, "max runs to export")
	rootCmd.AddCommand(exportCmd)
}
