package consolidate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/internal/agent"
	"github.com/sells-group/audit-cli/internal/linkedin"
	"github.com/sells-group/audit-cli/pkg/anthropic"
)

// Reducer consolidates lot results into one dataset.
type Reducer struct {
	client anthropic.Client
	tiers  agent.Tiers
	cfg    Config
	now    func() time.Time
}

// NewReducer creates a Reducer over the given completion client.
func NewReducer(client anthropic.Client, tiers agent.Tiers, cfg Config) *Reducer {
	return &Reducer{client: client, tiers: tiers, cfg: cfg.withDefaults(), now: time.Now}
}

// Reduce merges the lots deterministically, runs one generation pass
// for the inferred reading, applies the deterministic fallbacks, and
// recomputes metadata. It always returns a usable dataset; a failed
// generation pass only loses the inferred portion.
func (r *Reducer) Reduce(ctx context.Context, companyName string, lots []LotResult, growth *linkedin.Growth) Dataset {
	now := r.now()
	if len(lots) == 0 {
		zap.L().Info("consolidate: nothing to reduce")
		d := EmptyDataset(companyName, now)
		d.Growth = growth
		return d
	}

	d := MergeLots(companyName, lots, now)
	d.Growth = growth

	gen, err := r.generate(ctx, companyName, d, len(lots))
	if err != nil {
		zap.L().Error("consolidate: generation pass failed, keeping deterministic merge only",
			zap.String("company", companyName),
			zap.Error(err),
		)
		gen = &generationResult{}
	}
	d.CLevels = gen.CLevels
	d.OrgChart = normalizeOrgChart(gen.OrgChart)
	d.Themes = gen.Themes
	d.PreSignals = gen.PreSignals

	if len(d.CLevels) == 0 {
		d.CLevels = fallbackCLevels(d.Profiles)
	}
	DetectPreSignals(&d, now)
	recomputeMetadata(&d, len(lots))

	zap.L().Info("consolidate: reduce complete",
		zap.String("company", companyName),
		zap.Int("profiles", d.ProfileCount),
		zap.Int("c_levels", d.CLevelCount),
		zap.Int("posts", len(d.Posts)),
		zap.Int("pre_signals", len(d.PreSignals)),
	)
	return d
}

// MergeLots unions the lots' deterministic material: profiles by
// identity key keeping the more complete version, then the employer
// filter, then posts, movements, and stack under their dedup keys.
func MergeLots(companyName string, lots []LotResult, now time.Time) Dataset {
	d := EmptyDataset(companyName, now)

	byKey := make(map[string]Profile)
	var order []string
	for _, lot := range lots {
		for _, p := range lot.Profiles {
			key := p.Key()
			if key == "" {
				continue
			}
			existing, ok := byKey[key]
			if !ok {
				byKey[key] = p
				order = append(order, key)
				continue
			}
			if completeness(p) > completeness(existing) {
				byKey[key] = p
			}
		}
	}
	for _, key := range order {
		p := byKey[key]
		if !employerMatches(p.EmployerName, companyName) {
			zap.L().Debug("consolidate: dropping profile from another employer",
				zap.String("name", p.Name),
				zap.String("employer", p.EmployerName),
			)
			continue
		}
		d.Profiles = append(d.Profiles, p)
	}

	seenPosts := make(map[string]bool)
	seenMoves := make(map[string]bool)
	seenStack := make(map[string]bool)
	for _, lot := range lots {
		for _, post := range lot.Posts {
			key := postKey(post)
			if seenPosts[key] {
				continue
			}
			seenPosts[key] = true
			d.Posts = append(d.Posts, post)
		}
		for _, mv := range lot.Movements {
			mv.Type = NormalizeMovementType(mv.Type)
			key := fmt.Sprintf("%s|%s|%s", FoldName(mv.Person), mv.Type, mv.Date)
			if seenMoves[key] {
				continue
			}
			seenMoves[key] = true
			d.Movements = append(d.Movements, mv)
		}
	}
	for _, post := range d.Posts {
		for _, tool := range post.ToolsMentioned {
			if key := FoldName(tool); key != "" && !seenStack[key] {
				seenStack[key] = true
				d.Stack = append(d.Stack, StackEntry{Tool: tool, Source: "post", MentionedBy: post.Author})
			}
		}
	}
	for _, lot := range lots {
		for _, tool := range lot.Stack {
			if key := FoldName(tool); key != "" && !seenStack[key] {
				seenStack[key] = true
				d.Stack = append(d.Stack, StackEntry{Tool: tool})
			}
		}
	}
	return d
}

// postKey is the post dedup identity: author, date, and the first
// hundred characters of the text.
func postKey(p Post) string {
	text := []rune(p.Text)
	if len(text) > 100 {
		text = text[:100]
	}
	return fmt.Sprintf("%s|%s|%s", FoldName(p.Author), p.Date, string(text))
}

// employerMatches gives profiles without a stated employer the benefit
// of the doubt and otherwise accepts containment either way, so "Acme"
// still matches "Acme Group".
func employerMatches(employer, companyName string) bool {
	if strings.TrimSpace(employer) == "" {
		return true
	}
	e, c := FoldName(employer), FoldName(companyName)
	if e == "" || c == "" {
		return true
	}
	return strings.Contains(e, c) || strings.Contains(c, e)
}

func (r *Reducer) generate(ctx context.Context, companyName string, d Dataset, lotCount int) (*generationResult, error) {
	start := agent.TierFast
	if lotCount > r.cfg.StrongLots {
		start = agent.TierStrong
	}

	input := renderReduceContext(companyName, d, lotCount)
	var usage anthropic.TokenUsage
	gen, err := agent.EscalateOnce(ctx, r.tiers, start, "reduce",
		func(ctx context.Context, model string) (*generationResult, error) {
			resp, err := r.client.CreateMessage(ctx, anthropic.MessageRequest{
				Model:      model,
				MaxTokens:  r.cfg.MaxTokens,
				System:     anthropic.BuildCachedSystemBlocks(reduceSystemPrompt),
				Messages:   []anthropic.Message{anthropic.UserText(input)},
				Tools:      []anthropic.Tool{consolidationTool()},
				ToolChoice: anthropic.ForceTool(consolidationToolName),
			})
			if err != nil {
				return nil, err
			}
			usage.Add(resp.Usage)
			return decodeToolUse[generationResult](resp, consolidationToolName)
		}, nil)
	usage.LogCost(r.tiers.Model(start), "reduce")
	return gen, err
}

func renderReduceContext(companyName string, d Dataset, lotCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company under audit: %s\nMerged from %d extraction lots.\n\n", companyName, lotCount)
	writeSection := func(name string, v any) {
		raw, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return
		}
		fmt.Fprintf(&b, "## %s\n```json\n%s\n```\n\n", name, raw)
	}
	writeSection("Profiles", d.Profiles)
	writeSection("Posts", d.Posts)
	writeSection("Detected stack", d.Stack)
	writeSection("Movements", d.Movements)
	if d.Growth != nil {
		writeSection("Headcount growth", d.Growth)
	}
	return b.String()
}

// fallbackCLevels derives the leadership subset from profiles flagged
// C-level when the generation pass produced none.
func fallbackCLevels(profiles []Profile) []CLevel {
	var out []CLevel
	for _, p := range profiles {
		if !p.IsCLevel {
			continue
		}
		role, relevance := InferRole(p.CurrentTitle)
		out = append(out, CLevel{
			Name:           p.Name,
			CurrentTitle:   p.CurrentTitle,
			TenureMonths:   p.TenureMonths,
			Role:           role,
			SalesRelevance: relevance,
		})
	}
	return out
}

// orgRelationVariants folds model output onto the canonical relation
// names.
var orgRelationVariants = map[string]string{
	"reports_to":             "reports_to",
	"reporte_a":              "reports_to",
	"same_leadership":        "same_leadership",
	"meme_comex":             "same_leadership",
	"team_mention":           "team_mention",
	"mentionne_comme_equipe": "team_mention",
	"supervises":             "supervises",
	"supervise":              "supervises",
}

func normalizeOrgChart(links []OrgLink) []OrgLink {
	for i, l := range links {
		if canonical, ok := orgRelationVariants[FoldName(l.Relation)]; ok {
			links[i].Relation = canonical
		}
	}
	return links
}

func recomputeMetadata(d *Dataset, lotCount int) {
	d.ProfileCount = len(d.Profiles)
	cLevels := 0
	for _, p := range d.Profiles {
		if p.IsCLevel {
			cLevels++
		}
	}
	d.CLevelCount = cLevels
	d.BatchesMerged = lotCount
}
