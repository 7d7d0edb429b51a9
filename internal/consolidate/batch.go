package consolidate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/audit-cli/internal/linkedin"
	"github.com/sells-group/audit-cli/pkg/anthropic"
)

// Config bounds the extraction stage.
type Config struct {
	BatchSize     int   // profiles per lot
	TokenBudget   int   // estimated tokens above which a lot is halved
	CharsPerToken int   // serialized-size estimate divisor
	StrongLots    int   // lot count above which reduce runs on the strong tier
	MaxTokens     int64 // completion budget per call
}

// DefaultConfig returns the stage defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     10,
		TokenBudget:   250_000,
		CharsPerToken: 4,
		StrongLots:    4,
		MaxTokens:     8192,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.TokenBudget <= 0 {
		c.TokenBudget = d.TokenBudget
	}
	if c.CharsPerToken <= 0 {
		c.CharsPerToken = d.CharsPerToken
	}
	if c.StrongLots <= 0 {
		c.StrongLots = d.StrongLots
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	return c
}

// SourceProfile is one raw executive with the posts they authored.
type SourceProfile struct {
	Executive linkedin.Executive `json:"executive"`
	Posts     []linkedin.Post    `json:"posts,omitempty"`
}

// PairPosts attaches each post to its author's profile by
// case-insensitive name match. Posts without a matching profile are
// dropped.
func PairPosts(execs []linkedin.Executive, posts []linkedin.Post) []SourceProfile {
	byName := make(map[string][]linkedin.Post)
	for _, p := range posts {
		name := FoldName(p.AuthorName)
		if name != "" {
			byName[name] = append(byName[name], p)
		}
	}
	out := make([]SourceProfile, 0, len(execs))
	for _, e := range execs {
		out = append(out, SourceProfile{
			Executive: e,
			Posts:     byName[FoldName(e.FullName)],
		})
	}
	return out
}

// SplitBatches cuts profiles into sequential lots of at most BatchSize
// entries. A lot whose serialized size estimate exceeds the token
// budget is halved recursively. Halves never merge back across the
// original lot boundary.
func SplitBatches(profiles []SourceProfile, cfg Config) [][]SourceProfile {
	cfg = cfg.withDefaults()
	var out [][]SourceProfile
	for i := 0; i < len(profiles); i += cfg.BatchSize {
		end := i + cfg.BatchSize
		if end > len(profiles) {
			end = len(profiles)
		}
		out = append(out, halve(profiles[i:end], cfg)...)
	}
	return out
}

func halve(lot []SourceProfile, cfg Config) [][]SourceProfile {
	if len(lot) <= 1 || estimateTokens(lot, cfg.CharsPerToken) <= cfg.TokenBudget {
		return [][]SourceProfile{lot}
	}
	mid := len(lot) / 2
	return append(halve(lot[:mid], cfg), halve(lot[mid:], cfg)...)
}

func estimateTokens(lot []SourceProfile, charsPerToken int) int {
	raw, err := json.Marshal(lot)
	if err != nil {
		return 0
	}
	return len(raw) / charsPerToken
}

// MapOutcome is the extraction stage result. Failed lots are excluded
// from Lots; the stage itself never fails.
type MapOutcome struct {
	Lots      []LotResult
	Attempted int
	Succeeded int
}

// Mapper runs the per-lot extraction stage.
type Mapper struct {
	client anthropic.Client
	model  string
	cfg    Config
}

// NewMapper creates a Mapper calling the given extraction model.
func NewMapper(client anthropic.Client, model string, cfg Config) *Mapper {
	return &Mapper{client: client, model: model, cfg: cfg.withDefaults()}
}

// Extract pairs posts to profiles, splits the lots, and runs one
// structured extraction call per lot concurrently. A failed lot is
// logged and excluded; the remaining lots still consolidate.
func (m *Mapper) Extract(ctx context.Context, companyName string, execs []linkedin.Executive, posts []linkedin.Post) MapOutcome {
	if len(execs) == 0 {
		zap.L().Info("consolidate: no profiles to extract")
		return MapOutcome{}
	}

	profiles := PairPosts(execs, posts)
	lots := SplitBatches(profiles, m.cfg)
	zap.L().Info("consolidate: extraction fan-out",
		zap.Int("profiles", len(profiles)),
		zap.Int("lots", len(lots)),
		zap.Int("batch_size", m.cfg.BatchSize),
	)

	var (
		mu      sync.Mutex
		usage   anthropic.TokenUsage
		results = make([]*LotResult, len(lots))
	)

	g, gCtx := errgroup.WithContext(ctx)
	for i, lot := range lots {
		g.Go(func() error {
			result, u, err := m.extractLot(gCtx, companyName, lot, i+1, len(lots))
			mu.Lock()
			usage.Add(u)
			mu.Unlock()
			if err != nil {
				zap.L().Error("consolidate: lot extraction failed",
					zap.Int("lot", i+1),
					zap.Int("total", len(lots)),
					zap.Error(err),
				)
				return nil
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	outcome := MapOutcome{Attempted: len(lots)}
	for _, r := range results {
		if r != nil {
			outcome.Lots = append(outcome.Lots, *r)
			outcome.Succeeded++
		}
	}
	usage.LogCost(m.model, "map")
	zap.L().Info("consolidate: extraction complete",
		zap.Int("succeeded", outcome.Succeeded),
		zap.Int("attempted", outcome.Attempted),
	)
	return outcome
}

func (m *Mapper) extractLot(ctx context.Context, companyName string, lot []SourceProfile, lotNumber, totalLots int) (*LotResult, anthropic.TokenUsage, error) {
	resp, err := m.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:      m.model,
		MaxTokens:  m.cfg.MaxTokens,
		System:     anthropic.BuildCachedSystemBlocks(mapSystemPrompt),
		Messages:   []anthropic.Message{anthropic.UserText(renderLotContext(companyName, lot, lotNumber, totalLots))},
		Tools:      []anthropic.Tool{lotExtractionTool()},
		ToolChoice: anthropic.ForceTool(lotToolName),
	})
	if err != nil {
		return nil, anthropic.TokenUsage{}, err
	}

	result, err := decodeToolUse[LotResult](resp, lotToolName)
	if err != nil {
		return nil, resp.Usage, err
	}
	result.LotNumber = lotNumber
	if result.CompanyName == "" {
		result.CompanyName = companyName
	}
	return result, resp.Usage, nil
}

// renderLotContext lays out each profile with its posts so the model
// sees authorship adjacency rather than two flat lists.
func renderLotContext(companyName string, lot []SourceProfile, lotNumber, totalLots int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company under audit: %s\nLot %d of %d, %d profiles.\n\n", companyName, lotNumber, totalLots, len(lot))
	for _, p := range lot {
		fmt.Fprintf(&b, "## Profile: %s\n", p.Executive.FullName)
		raw, err := json.MarshalIndent(p.Executive, "", "  ")
		if err == nil {
			fmt.Fprintf(&b, "```json\n%s\n```\n", raw)
		}
		if len(p.Posts) > 0 {
			fmt.Fprintf(&b, "### Posts (%d)\n", len(p.Posts))
			for _, post := range p.Posts {
				fmt.Fprintf(&b, "- [%s] (%d reactions) %s\n", post.Date, post.Reactions, post.Text)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// decodeToolUse unmarshals the forced tool call's input from a
// response.
func decodeToolUse[T any](resp *anthropic.MessageResponse, toolName string) (*T, error) {
	for _, block := range resp.ToolUses() {
		if block.Name != toolName {
			continue
		}
		var out T
		if err := json.Unmarshal(block.Input, &out); err != nil {
			return nil, eris.Wrapf(err, "consolidate: decode %s input", toolName)
		}
		return &out, nil
	}
	return nil, eris.Errorf("consolidate: response carries no %s call", toolName)
}
