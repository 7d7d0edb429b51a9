package pipeline

import (
	"encoding/csv"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// ParseDealsCSV reads a CRM deal export and returns one audit request
// per row. Column headers are matched case-insensitively; company_name
// also accepts "company" and domain accepts "website". Rows without a
// company name and without a domain are skipped, and duplicates
// collapse on domain first, company name second.
func ParseDealsCSV(csvPath string) ([]Request, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, eris.Wrap(err, "deals: open csv")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "deals: read csv")
	}
	if len(records) < 2 {
		return nil, eris.New("deals: csv has no data rows")
	}

	colIdx := make(map[string]int, len(records[0]))
	for i, col := range records[0] {
		colIdx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	col := func(row []string, names ...string) string {
		for _, name := range names {
			if i, ok := colIdx[name]; ok && i < len(row) {
				return strings.TrimSpace(row[i])
			}
		}
		return ""
	}

	if _, hasCompany := colIdx["company_name"]; !hasCompany {
		if _, hasAlias := colIdx["company"]; !hasAlias {
			return nil, eris.New(`deals: missing required column "company_name"`)
		}
	}

	seen := make(map[string]bool)
	var requests []Request
	for _, row := range records[1:] {
		req := Request{
			DealID:      col(row, "deal_id"),
			StageID:     col(row, "stage_id"),
			CompanyName: col(row, "company_name", "company"),
			Domain:      col(row, "domain", "website"),
			Country:     col(row, "country"),
		}
		if req.CompanyName == "" && req.Domain == "" {
			continue
		}

		key := NormalizeDomain(req.Domain)
		if key == "" {
			key = strings.ToLower(req.CompanyName)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		requests = append(requests, req)
	}

	if len(requests) == 0 {
		return nil, eris.New("deals: no usable rows in csv")
	}
	return requests, nil
}
