package report

import (
	"net/url"
	"strings"
)

// placeholderPublishers are values generation passes emit when citing
// their own prior knowledge instead of a fetched source.
var placeholderPublishers = map[string]struct{}{
	"model knowledge":    {},
	"internal knowledge": {},
	"knowledge base":     {},
	"training data":      {},
	"general knowledge":  {},
	"llm":                {},
	"assistant":          {},
	"n/a":                {},
	"none":               {},
	"unknown":            {},
}

// placeholderHosts are URL hosts that never point at a real source.
var placeholderHosts = map[string]struct{}{
	"example.com":     {},
	"www.example.com": {},
	"example.org":     {},
	"localhost":       {},
}

// ValidateCitations enforces the citation policy on a report in place:
// facts without at least one real source URL are downgraded to low
// confidence, and placeholder publisher values are rewritten to the
// explicit model-knowledge marker.
func ValidateCitations(r *AgentReport) {
	for i := range r.Facts {
		fact := &r.Facts[i]
		cited := false
		for j := range fact.Sources {
			src := &fact.Sources[j]
			if isPlaceholderPublisher(src.Publisher) {
				src.Publisher = ModelKnowledge
			}
			if RealURL(src.URL) {
				cited = true
			}
		}
		if !cited {
			fact.Confidence = ConfidenceLow
		}
	}
}

// RealURL reports whether raw is an absolute http(s) URL pointing at a
// non-placeholder host.
func RealURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	_, placeholder := placeholderHosts[host]
	return !placeholder
}

func isPlaceholderPublisher(p string) bool {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return false
	}
	_, ok := placeholderPublishers[p]
	return ok
}
