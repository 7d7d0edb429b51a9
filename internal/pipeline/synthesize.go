package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/internal/agent"
	"github.com/sells-group/audit-cli/internal/report"
	"github.com/sells-group/audit-cli/internal/store"
	"github.com/sells-group/audit-cli/pkg/anthropic"
	"github.com/sells-group/audit-cli/pkg/salesforce"
	"github.com/sells-group/audit-cli/pkg/slack"
)

// synthesisMaxTokens is the completion budget for the final report.
const synthesisMaxTokens = 8192

const synthesizerSystem = `You are the lead analyst closing out a B2B sales-readiness audit for an
IT services seller. You receive the reports of every analysis unit and
the scored signal grille. Write the executive summary the account team
will read before deciding whether to engage.

Structure the summary in markdown:
- Open with the verdict, the score, and the two or three findings that
  drive it.
- One section per theme that matters for this company: financial
  footing, transformation momentum, technology leadership, warm paths
  in. Skip themes with nothing to say.
- Close with the recommended next step for the account team.

Ground every claim in the reports; keep the signal IDs out of the
prose. Name the people and programs the units found. Flag explicitly
where data quality was too low to judge. Answer in the language the
unit reports are written in.`

// synthesizeNode produces the final report and pushes it to the three
// destinations. Sink failures are logged, never raised; the run ends
// complete-but-degraded at worst.
func (p *Pipeline) synthesizeNode(ctx context.Context, s RunState) (Patch, error) {
	log := zap.L().With(
		zap.String("run_id", s.RunID),
		zap.String("company", s.CompanyName),
	)

	text, synthErr := p.composeReport(ctx, s)
	var newErrs map[string]string
	if synthErr != nil {
		log.Warn("pipeline: synthesis completion failed, using fallback report",
			zap.Error(synthErr),
		)
		newErrs = errorMap("synthesize", synthErr)
		text = fallbackReport(s)
	}

	status := store.RunStatusCompleted
	if len(s.Errors) > 0 || len(newErrs) > 0 {
		status = store.RunStatusCompletedWithErrors
	}

	allErrs := make(map[string]string, len(s.Errors)+len(newErrs))
	for k, v := range s.Errors {
		allErrs[k] = v
	}
	for k, v := range newErrs {
		allErrs[k] = v
	}

	p.persistOutcome(ctx, s, text, status, allErrs)
	p.noteDeal(ctx, s, text)
	p.notifyChat(ctx, s, status)

	log.Info("pipeline: run complete",
		zap.String("status", string(status)),
		zap.Int("reports", len(s.Reports)),
		zap.Int("errors", len(allErrs)),
	)
	return Patch{FinalReport: &text, Status: &status, Errors: newErrs}, nil
}

// composeReport runs the strong-tier completion over the reports and
// the scoring result. The tier combinator grants one retry.
func (p *Pipeline) composeReport(ctx context.Context, s RunState) (string, error) {
	input := renderSynthesisInput(s)
	return agent.EscalateOnce(ctx, p.tiers, agent.TierStrong, "synthesize",
		func(ctx context.Context, model string) (string, error) {
			resp, err := p.anthropic.CreateMessage(ctx, anthropic.MessageRequest{
				Model:     model,
				MaxTokens: synthesisMaxTokens,
				System:    anthropic.BuildCachedSystemBlocks(synthesizerSystem),
				Messages:  []anthropic.Message{anthropic.UserText(input)},
			})
			if err != nil {
				return "", eris.Wrap(err, "pipeline: synthesis call")
			}
			text := strings.TrimSpace(resp.Text())
			if text == "" {
				return "", eris.New("pipeline: empty synthesis")
			}
			return text, nil
		}, nil)
}

func renderSynthesisInput(s RunState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s", s.CompanyName)
	if s.Domain != "" {
		fmt.Fprintf(&b, " (%s)", s.Domain)
	}
	b.WriteString("\n\n# Unit reports\n\n")
	b.WriteString(mustJSON(s.Reports))
	b.WriteString("\n\n# Scoring\n\n")
	b.WriteString(mustJSON(s.Scoring))
	if len(s.Errors) > 0 {
		b.WriteString("\n\n# Degraded stages\n\n")
		b.WriteString(mustJSON(s.Errors))
	}
	return b.String()
}

func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// fallbackReport renders a minimal summary from the scoring result so
// the sinks still receive a verdict when the completion is down.
func fallbackReport(s RunState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Audit: %s\n\n", s.CompanyName)
	if s.Scoring == nil {
		b.WriteString("No scoring result is available for this run.\n")
		return b.String()
	}
	sc := s.Scoring
	fmt.Fprintf(&b, "**Verdict: %s** (%.1f/%d points, data quality %.0f%%)\n\n",
		sc.Verdict, sc.Total, sc.MaxPossible, sc.DataQuality)
	if sc.Warning != "" {
		fmt.Fprintf(&b, "> %s\n\n", sc.Warning)
	}

	b.WriteString("## Detected signals\n\n")
	detected := 0
	for _, sig := range sc.Signals {
		if sig.Status != report.StatusDetected {
			continue
		}
		detected++
		line := fmt.Sprintf("- %s (%+.1f pts)", sig.SignalID, sig.WeightedPoints)
		if sig.Evidence != "" {
			line += ": " + sig.Evidence
		}
		b.WriteString(line + "\n")
	}
	if detected == 0 {
		b.WriteString("None.\n")
	}

	if len(s.Errors) > 0 {
		b.WriteString("\n## Degraded stages\n\n")
		nodes := make([]string, 0, len(s.Errors))
		for node := range s.Errors {
			nodes = append(nodes, node)
		}
		sort.Strings(nodes)
		for _, node := range nodes {
			fmt.Fprintf(&b, "- %s: %s\n", node, s.Errors[node])
		}
	}
	return b.String()
}

// persistOutcome writes the per-unit reports and finalizes the run
// row. Fire-and-log.
func (p *Pipeline) persistOutcome(ctx context.Context, s RunState, text string, status store.RunStatus, errs map[string]string) {
	if s.RunID == "" {
		zap.L().Warn("pipeline: no run row, skipping persistence")
		return
	}
	for _, rep := range s.Reports {
		if err := p.store.SaveReport(ctx, s.RunID, rep); err != nil {
			zap.L().Error("pipeline: report not saved",
				zap.String("unit", rep.Unit),
				zap.Error(err),
			)
		}
	}

	out := store.Outcome{
		Status:       status,
		FinalReport:  text,
		Errors:       errs,
		Consolidated: s.Dataset,
	}
	if s.Scoring != nil {
		out.Verdict = string(s.Scoring.Verdict)
		out.ScoreTotal = s.Scoring.Total
		out.ScoreMax = s.Scoring.MaxPossible
		out.DataQuality = s.Scoring.DataQuality
		out.Scoring = s.Scoring
	}
	if err := p.store.FinalizeRun(ctx, s.RunID, out); err != nil {
		zap.L().Error("pipeline: run row not finalized",
			zap.String("run_id", s.RunID),
			zap.Error(err),
		)
	}
}

// noteDeal attaches the report to the CRM deal. Fire-and-log.
func (p *Pipeline) noteDeal(ctx context.Context, s RunState, text string) {
	if p.salesforce == nil || s.DealID == "" {
		return
	}
	noteID, err := salesforce.CreateDealNote(ctx, p.salesforce, s.DealID, noteTitle(s), text)
	if err != nil {
		zap.L().Error("pipeline: deal note not created",
			zap.String("deal_id", s.DealID),
			zap.Error(err),
		)
		return
	}
	zap.L().Info("pipeline: deal note created",
		zap.String("deal_id", s.DealID),
		zap.String("note_id", noteID),
	)
}

func noteTitle(s RunState) string {
	if s.Scoring == nil {
		return "Audit " + s.CompanyName
	}
	return fmt.Sprintf("Audit %s: %s (%.0f/%d)",
		s.CompanyName, s.Scoring.Verdict, s.Scoring.Total, s.Scoring.MaxPossible)
}

// notifyChat posts the verdict to the team channel. Fire-and-log.
func (p *Pipeline) notifyChat(ctx context.Context, s RunState, status store.RunStatus) {
	if p.slack == nil {
		return
	}
	n := slack.Notification{
		CompanyName: s.CompanyName,
		Status:      string(status),
		DealURL:     p.dealURL(s.DealID),
	}
	if s.Scoring != nil {
		n.Verdict = string(s.Scoring.Verdict)
		n.Score = s.Scoring.Total
		n.ScoreMax = s.Scoring.MaxPossible
		n.DataQuality = s.Scoring.DataQuality
	}
	if err := p.slack.Notify(ctx, n); err != nil {
		zap.L().Error("pipeline: chat notification failed", zap.Error(err))
		return
	}
	zap.L().Info("pipeline: chat notification sent",
		zap.String("company", s.CompanyName),
	)
}

func (p *Pipeline) dealURL(dealID string) string {
	if dealID == "" || p.cfg.Slack.DealFormat == "" {
		return ""
	}
	return fmt.Sprintf(p.cfg.Slack.DealFormat, dealID)
}
