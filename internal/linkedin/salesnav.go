package linkedin

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Sales Navigator people-search URLs carry their filters double
// percent-encoded inside the query string. The builders below emit that
// format directly; the providers that execute saved searches (Evaboot,
// Unipile) take these URLs verbatim.

const (
	filterCurrentCompany = "CURRENT_COMPANY"
	filterPastCompany    = "PAST_COMPANY"
)

// seniorityFacets are the Sales Navigator seniority levels worth
// surfacing in an executive search.
var seniorityFacets = []struct{ id, label string }{
	{"310", "CXO"},
	{"300", "VP"},
	{"320", "Owner"},
	{"130", "Strategic"},
}

// encodeTitle double-encodes spaces so multi-word keywords survive
// LinkedIn's nested query syntax.
func encodeTitle(keyword string) string {
	return strings.ReplaceAll(keyword, " ", "%2520")
}

func regionFilter(regionID, regionName string) string {
	return fmt.Sprintf(
		"(type%%3AREGION%%2Cvalues%%3AList((id%%3A%s%%2Ctext%%3A%s%%2CselectionType%%3AINCLUDED)))",
		regionID, regionName,
	)
}

func companyFilter(filterType, companyID, companyName string) string {
	return fmt.Sprintf(
		"(type%%3A%s%%2Cvalues%%3AList((id%%3Aurn%%253Ali%%253Aorganization%%253A%s%%2Ctext%%3A%s%%2CselectionType%%3AINCLUDED%%2Cparent%%3A(id%%3A0))))",
		filterType, companyID, companyName,
	)
}

func salesNavURL(filters []string) string {
	searchID := rand.Int64N(9000000000) + 1000000000
	return fmt.Sprintf(
		"https://www.linkedin.com/sales/search/people?query=(recentSearchParam%%3A(id%%3A%d%%2CdoLogHistory%%3Atrue)%%2Cfilters%%3AList(%s))&viewAllFilters=true",
		searchID, strings.Join(filters, "%2C"),
	)
}

// salesNavSeniorityURL builds a people search filtered to senior roles
// at the company. filterType selects current or past employees.
func salesNavSeniorityURL(filterType, companyID, companyName, regionID, regionName string) string {
	values := make([]string, 0, len(seniorityFacets))
	for _, f := range seniorityFacets {
		values = append(values, fmt.Sprintf("(id%%3A%s%%2Ctext%%3A%s%%2CselectionType%%3AINCLUDED)", f.id, f.label))
	}

	filters := []string{
		fmt.Sprintf("(type%%3ASENIORITY_LEVEL%%2Cvalues%%3AList(%s))", strings.Join(values, "%2C")),
		companyFilter(filterType, companyID, companyName),
	}
	if regionID != "" {
		filters = append(filters, regionFilter(regionID, regionName))
	}
	return salesNavURL(filters)
}

// salesNavTitleURL builds a people search for current employees whose
// job title matches any of the keywords.
func salesNavTitleURL(companyID, companyName string, titleKeywords []string, regionID, regionName string) string {
	values := make([]string, 0, len(titleKeywords))
	for _, kw := range titleKeywords {
		values = append(values, fmt.Sprintf("(text%%3A%s%%2CselectionType%%3AINCLUDED)", encodeTitle(kw)))
	}

	filters := []string{
		companyFilter(filterCurrentCompany, companyID, companyName),
		fmt.Sprintf("(type%%3ACURRENT_TITLE%%2Cvalues%%3AList(%s))", strings.Join(values, "%2C")),
	}
	if regionID != "" {
		filters = append(filters, regionFilter(regionID, regionName))
	}
	return salesNavURL(filters)
}
