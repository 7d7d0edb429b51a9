// Package agent runs the analysis units: bounded tool-calling loops
// over routed internal data, followed by schema-constrained extraction
// into the shared report contract.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/internal/report"
	"github.com/sells-group/audit-cli/internal/scoring"
	"github.com/sells-group/audit-cli/pkg/anthropic"
)

// Config bounds a unit run.
type Config struct {
	// MaxIterations caps the tool loop turns.
	MaxIterations int
	// MaxContextChars caps the cumulative conversation size; once past
	// it the loop stops researching and wraps up.
	MaxContextChars int
	// ToolResultMaxChars truncates oversized tool results.
	ToolResultMaxChars int
	// MaxTokens is the per-call completion budget.
	MaxTokens int64
}

// DefaultConfig returns the production bounds.
func DefaultConfig() Config {
	return Config{
		MaxIterations:      10,
		MaxContextChars:    120000,
		ToolResultMaxChars: 10000,
		MaxTokens:          4096,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.MaxContextChars <= 0 {
		c.MaxContextChars = d.MaxContextChars
	}
	if c.ToolResultMaxChars <= 0 {
		c.ToolResultMaxChars = d.ToolResultMaxChars
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	return c
}

// Input is the material one unit works from.
type Input struct {
	CompanyName string
	Domain      string
	Country     string
	// Context is the unit's routed slice of the consolidated dataset,
	// rendered as text. Empty when enrichment produced nothing.
	Context string
	// Extra carries findings handed down from an upstream unit.
	Extra string
	// LinkedInAvailable records whether profile data backed the run.
	LinkedInAvailable bool
}

// Runner executes analysis units against the completion API.
type Runner struct {
	client anthropic.Client
	tiers  Tiers
	tools  *Toolset
	cfg    Config
}

// NewRunner builds a runner. tools may be nil for a fully offline
// runner; tool-enabled units then answer from their input alone.
func NewRunner(client anthropic.Client, tiers Tiers, tools *Toolset, cfg Config) *Runner {
	return &Runner{client: client, tiers: tiers, tools: tools, cfg: cfg.withDefaults()}
}

type addUsage func(model string, u anthropic.TokenUsage)

// Run executes one unit and returns its report. On failure the
// degraded report comes back alongside the error so the caller can
// record the failure and still score what the other units produced.
func (r *Runner) Run(ctx context.Context, unit Unit, input Input) (report.AgentReport, error) {
	expected := scoring.ExpectedSignals(unit.Name)

	usage := map[string]anthropic.TokenUsage{}
	add := func(model string, u anthropic.TokenUsage) {
		total := usage[model]
		total.Add(u)
		usage[model] = total
	}
	defer func() {
		for model, total := range usage {
			total.LogCost(model, unit.Name)
		}
	}()

	seed := renderInput(input)
	opening := seed
	if unit.TwoPass {
		summary, err := r.summarize(ctx, unit, seed, add)
		if err != nil {
			zap.L().Warn("agent: summary pass failed, continuing on raw data",
				zap.String("unit", unit.Name),
				zap.Error(err),
			)
		} else {
			opening = fmt.Sprintf(gapInstruction, summary)
		}
	}

	analysis, err := r.loop(ctx, unit, opening, add)
	if err != nil {
		return report.Degraded(unit.Name), eris.Wrapf(err, "agent: %s analysis", unit.Name)
	}

	rep, err := r.extract(ctx, unit, analysis, expected, add)
	if err != nil {
		return report.Degraded(unit.Name), eris.Wrapf(err, "agent: %s extraction", unit.Name)
	}
	finishReport(&rep, unit, input)

	zap.L().Info("agent: unit complete",
		zap.String("unit", unit.Name),
		zap.Int("facts", len(rep.Facts)),
		zap.Int("signals", len(rep.Signals)),
		zap.Int("sources", rep.DataQuality.SourceCount),
	)
	return rep, nil
}

// summarize runs the internal-data-only first pass of a two-pass unit.
func (r *Runner) summarize(ctx context.Context, unit Unit, seed string, add addUsage) (string, error) {
	resp, err := r.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     r.tiers.Fast,
		MaxTokens: r.cfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(unit.System),
		Messages:  []anthropic.Message{anthropic.UserText(seed + "\n\n" + summaryInstruction)},
	})
	if err != nil {
		return "", eris.Wrap(err, "agent: summary pass")
	}
	add(r.tiers.Fast, resp.Usage)
	summary := resp.Text()
	if strings.TrimSpace(summary) == "" {
		return "", eris.New("agent: empty summary")
	}
	return summary, nil
}

// loop drives the tool-calling conversation until the model answers in
// plain text, the iteration cap is hit, or the context budget runs out.
func (r *Runner) loop(ctx context.Context, unit Unit, opening string, add addUsage) (string, error) {
	msgs := []anthropic.Message{anthropic.UserText(opening)}
	var defs []anthropic.Tool
	if unit.Tools && r.tools != nil {
		defs = r.tools.Definitions()
	}
	budget := r.cfg.MaxContextChars - len(opening)

	for i := 0; i < r.cfg.MaxIterations; i++ {
		resp, err := r.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     r.tiers.Fast,
			MaxTokens: r.cfg.MaxTokens,
			System:    anthropic.BuildCachedSystemBlocks(unit.System),
			Messages:  msgs,
			Tools:     defs,
		})
		if err != nil {
			return "", eris.Wrap(err, "agent: analysis turn")
		}
		add(r.tiers.Fast, resp.Usage)

		uses := resp.ToolUses()
		if len(uses) == 0 {
			return resp.Text(), nil
		}

		msgs = append(msgs, resp.AssistantMessage())
		results := make([]anthropic.ContentBlock, 0, len(uses))
		for _, use := range uses {
			content, terr := r.tools.Execute(ctx, use.Name, use.Input)
			isError := false
			if terr != nil {
				content = terr.Error()
				isError = true
			}
			content = truncateResult(content, r.cfg.ToolResultMaxChars)
			budget -= len(content)
			results = append(results, anthropic.ToolResultBlock(use.ID, content, isError))
		}
		msgs = append(msgs, anthropic.ToolResults(results...))

		if budget <= 0 {
			zap.L().Warn("agent: context budget exhausted",
				zap.String("unit", unit.Name),
				zap.Int("iterations", i+1),
			)
			break
		}
	}
	return r.wrapUp(ctx, unit, msgs, add)
}

// wrapUp forces a final text turn, without tools, on a conversation the
// loop had to cut off.
func (r *Runner) wrapUp(ctx context.Context, unit Unit, msgs []anthropic.Message, add addUsage) (string, error) {
	msgs = append(msgs, anthropic.UserText(wrapUpInstruction))
	resp, err := r.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     r.tiers.Fast,
		MaxTokens: r.cfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(unit.System),
		Messages:  msgs,
	})
	if err != nil {
		return "", eris.Wrap(err, "agent: wrap-up turn")
	}
	add(r.tiers.Fast, resp.Usage)
	return resp.Text(), nil
}

// extract converts the analysis text into a structured report. One
// fast-tier attempt, retried once on the strong tier when the call
// fails or every expected signal comes back UNKNOWN with no evidence.
func (r *Runner) extract(ctx context.Context, unit Unit, analysis string, expected []string, add addUsage) (report.AgentReport, error) {
	if strings.TrimSpace(analysis) == "" {
		return report.AgentReport{}, eris.New("agent: empty analysis")
	}
	degenerate := func(rep report.AgentReport) bool {
		return len(expected) > 0 && rep.AllUnknown()
	}
	return EscalateOnce(ctx, r.tiers, TierFast, unit.Name+" extraction",
		func(ctx context.Context, model string) (report.AgentReport, error) {
			resp, err := r.client.CreateMessage(ctx, anthropic.MessageRequest{
				Model:      model,
				MaxTokens:  r.cfg.MaxTokens,
				System:     anthropic.BuildCachedSystemBlocks(extractionSystem),
				Messages:   []anthropic.Message{anthropic.UserText(renderExtraction(unit, analysis, expected))},
				Tools:      []anthropic.Tool{reportTool(expected)},
				ToolChoice: anthropic.ForceTool(reportToolName),
			})
			if err != nil {
				return report.AgentReport{}, eris.Wrap(err, "agent: extraction call")
			}
			add(model, resp.Usage)
			return decodeReport(resp)
		}, degenerate)
}

// finishReport stamps the unit, enforces the citation policy, and
// recomputes the quality block from what the report actually cites.
func finishReport(rep *report.AgentReport, unit Unit, input Input) {
	rep.Unit = unit.Name
	report.ValidateCitations(rep)
	rep.DataQuality.SourceCount = countSources(*rep)
	rep.DataQuality.LinkedInAvailable = input.LinkedInAvailable
	if rep.DataQuality.OverallConfidence == "" {
		rep.DataQuality.OverallConfidence = report.ConfidenceLow
	}
}

// countSources counts distinct real URLs cited across facts and
// signals.
func countSources(rep report.AgentReport) int {
	seen := map[string]struct{}{}
	for _, f := range rep.Facts {
		for _, s := range f.Sources {
			if report.RealURL(s.URL) {
				seen[s.URL] = struct{}{}
			}
		}
	}
	for _, s := range rep.Signals {
		for _, u := range s.Sources {
			if report.RealURL(u) {
				seen[u] = struct{}{}
			}
		}
	}
	return len(seen)
}

func decodeReport(resp *anthropic.MessageResponse) (report.AgentReport, error) {
	for _, block := range resp.ToolUses() {
		if block.Name != reportToolName {
			continue
		}
		var rep report.AgentReport
		if err := json.Unmarshal(block.Input, &rep); err != nil {
			return report.AgentReport{}, eris.Wrapf(err, "agent: decode %s payload", reportToolName)
		}
		return rep, nil
	}
	return report.AgentReport{}, eris.Errorf("agent: response carries no %s call", reportToolName)
}

func renderInput(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company under audit: %s", in.CompanyName)
	if in.Domain != "" {
		fmt.Fprintf(&b, " (%s)", in.Domain)
	}
	if in.Country != "" {
		fmt.Fprintf(&b, ", %s", in.Country)
	}
	b.WriteString("\n\n## Internal data\n\n")
	if strings.TrimSpace(in.Context) == "" {
		b.WriteString("No internal data is available for this unit.\n")
	} else {
		b.WriteString(in.Context)
		b.WriteString("\n")
	}
	if in.Extra != "" {
		b.WriteString("\n## Prior findings\n\n")
		b.WriteString(in.Extra)
		b.WriteString("\n")
	}
	return b.String()
}

func renderExtraction(unit Unit, analysis string, expected []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Unit: %s\n", unit.Name)
	if len(expected) > 0 {
		fmt.Fprintf(&b, "Expected signals: %s\n", strings.Join(expected, ", "))
	} else {
		b.WriteString("This unit resolves no signals; record facts only.\n")
	}
	b.WriteString("\nAnalysis:\n\n")
	b.WriteString(analysis)
	return b.String()
}

// truncateResult caps one tool result, marking the cut.
func truncateResult(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "\n... [truncated]"
}
