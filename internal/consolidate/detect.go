package consolidate

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Pre-signal identifiers the deterministic detectors can emit.
const (
	SignalTransfoOffice      = "transformation_office_exists"
	SignalPMO                = "pmo_identified"
	SignalNewCIO             = "new_cio_appointed"
	SignalStructuralTurnover = "structural_turnover"
	SignalTransfoPosts       = "transformation_posts"
)

const (
	newLeaderMaxMonths    = 12
	turnoverWindow        = 18 * 30 * 24 * time.Hour
	turnoverMinDepartures = 3
	postsWindow           = 6 * 30 * 24 * time.Hour
	postsMinMatches       = 2
)

// DetectPreSignals appends deterministic fallbacks for signals the
// generation pass stayed silent on. A signal the pass already flagged
// probable is never emitted twice.
func DetectPreSignals(d *Dataset, now time.Time) {
	type detector struct {
		id  string
		run func(*Dataset, time.Time) *PreSignal
	}
	detectors := []detector{
		{SignalTransfoOffice, detectTransfoOffice},
		{SignalPMO, detectPMO},
		{SignalNewCIO, detectNewCIO},
		{SignalStructuralTurnover, detectStructuralTurnover},
		{SignalTransfoPosts, detectTransfoPosts},
	}
	for _, det := range detectors {
		if d.HasProbablePreSignal(det.id) {
			continue
		}
		if s := det.run(d, now); s != nil {
			d.PreSignals = append(d.PreSignals, *s)
		}
	}
}

// Role-type terms a title must carry alongside the domain term, so a
// lone "transformation enthusiast" headline does not count as an
// office.
var roleTerms = []string{
	"director", "head", "vp", "vice president", "chief", "lead",
	"manager", "officer", "directeur", "directrice", "responsable",
}

func titleCooccurs(title string, domainTerms []string) bool {
	folded := FoldName(title)
	hasDomain := false
	for _, term := range domainTerms {
		if strings.Contains(folded, term) {
			hasDomain = true
			break
		}
	}
	if !hasDomain {
		return false
	}
	for _, term := range roleTerms {
		if matchKeyword(folded, term) {
			return true
		}
	}
	return false
}

func detectTransfoOffice(d *Dataset, _ time.Time) *PreSignal {
	for _, p := range d.Profiles {
		if titleCooccurs(p.CurrentTitle, []string{"transformation", "transfo"}) {
			return &PreSignal{
				SignalID: SignalTransfoOffice,
				Probable: true,
				Evidence: fmt.Sprintf("%s holds the title %q", p.Name, p.CurrentTitle),
				Source:   p.Name,
			}
		}
	}
	return nil
}

func detectPMO(d *Dataset, _ time.Time) *PreSignal {
	for _, p := range d.Profiles {
		if titleCooccurs(p.CurrentTitle, []string{"pmo", "project management office", "portfolio"}) {
			return &PreSignal{
				SignalID: SignalPMO,
				Probable: true,
				Evidence: fmt.Sprintf("%s holds the title %q", p.Name, p.CurrentTitle),
				Source:   p.Name,
			}
		}
	}
	return nil
}

func detectNewCIO(d *Dataset, now time.Time) *PreSignal {
	for _, p := range d.Profiles {
		if !p.IsCLevel {
			continue
		}
		role, _ := InferRole(p.CurrentTitle)
		if role != RoleCIO {
			continue
		}
		months, ok := tenureMonths(p, now)
		if !ok || months > newLeaderMaxMonths {
			continue
		}
		return &PreSignal{
			SignalID: SignalNewCIO,
			Probable: true,
			Evidence: fmt.Sprintf("%s became %s %d months ago", p.Name, p.CurrentTitle, months),
			Source:   p.Name,
		}
	}
	return nil
}

func detectStructuralTurnover(d *Dataset, now time.Time) *PreSignal {
	cLevel := make(map[string]bool)
	for _, p := range d.Profiles {
		if p.IsCLevel {
			cLevel[FoldName(p.Name)] = true
		}
	}
	var departed []string
	for _, mv := range d.Movements {
		if mv.Type != MovementDeparture || !cLevel[FoldName(mv.Person)] {
			continue
		}
		when, ok := parseMonth(mv.Date)
		if !ok || now.Sub(when) > turnoverWindow {
			continue
		}
		departed = append(departed, mv.Person)
	}
	if len(departed) < turnoverMinDepartures {
		return nil
	}
	return &PreSignal{
		SignalID: SignalStructuralTurnover,
		Probable: true,
		Evidence: fmt.Sprintf("%d leadership departures in 18 months: %s", len(departed), strings.Join(departed, ", ")),
		Source:   departed[0],
	}
}

func detectTransfoPosts(d *Dataset, _ time.Time) *PreSignal {
	cLevel := make(map[string]bool)
	for _, p := range d.Profiles {
		if p.IsCLevel {
			cLevel[FoldName(p.Name)] = true
		}
	}
	type match struct {
		post Post
		when time.Time
	}
	var matches []match
	for _, post := range d.Posts {
		if !cLevel[FoldName(post.Author)] || !postMentionsTransformation(post) {
			continue
		}
		when, ok := parseDay(post.Date)
		if !ok {
			continue
		}
		matches = append(matches, match{post, when})
	}
	if len(matches) < postsMinMatches {
		return nil
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].when.After(matches[j].when) })
	anchor := matches[0].when
	inWindow := 0
	for _, m := range matches {
		if anchor.Sub(m.when) <= postsWindow {
			inWindow++
		}
	}
	if inWindow < postsMinMatches {
		return nil
	}
	return &PreSignal{
		SignalID: SignalTransfoPosts,
		Probable: true,
		Evidence: fmt.Sprintf("%d transformation posts by leadership within six months", inWindow),
		Source:   matches[0].post.Author,
	}
}

func postMentionsTransformation(p Post) bool {
	for _, topic := range p.Topics {
		if strings.Contains(FoldName(topic), "transformation") {
			return true
		}
	}
	folded := FoldName(p.Text)
	return strings.Contains(folded, "transformation") || strings.Contains(folded, "transfo ")
}

// tenureMonths prefers the extracted tenure and falls back to the role
// start date.
func tenureMonths(p Profile, now time.Time) (int, bool) {
	if p.TenureMonths != nil {
		return *p.TenureMonths, true
	}
	start, ok := parseMonth(p.RoleStart)
	if !ok {
		return 0, false
	}
	months := int(now.Sub(start).Hours() / 24 / 30)
	if months < 0 {
		return 0, false
	}
	return months, true
}

func parseMonth(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseDay(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
