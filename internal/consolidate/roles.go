package consolidate

import (
	"strings"
	"unicode"
)

// Inferred leadership roles.
const (
	RoleCEO          = "CEO"
	RoleCFO          = "CFO"
	RoleCIO          = "CIO"
	RoleCTO          = "CTO"
	RoleCDO          = "CDO"
	RoleCOO          = "COO"
	RoleCMO          = "CMO"
	RoleCHRO         = "CHRO"
	RoleVPIT         = "VP_IT"
	RoleVPDigital    = "VP_Digital"
	RoleVPSales      = "VP_Sales"
	RoleVPTransfo    = "VP_Transformation"
	RoleVPOperations = "VP_Operations"
	RoleBUHead       = "BU_Head"
	RoleOther        = "Other"
)

type roleRule struct {
	role      string
	relevance int
	keywords  []string
}

// roleTable maps title keywords onto roles with a default sales
// relevance. Scanned in order; the first matching keyword wins.
// Keywords cover the English and French titles the target market uses.
var roleTable = []roleRule{
	{RoleCIO, 5, []string{"chief information officer", "cio", "dsi", "directeur des systemes d'information", "it director", "directeur informatique"}},
	{RoleCDO, 5, []string{"chief digital officer", "chief data officer", "cdo", "directeur digital", "directeur de la transformation digitale"}},
	{RoleCTO, 4, []string{"chief technology officer", "cto", "directeur technique"}},
	{RoleVPTransfo, 5, []string{"transformation"}},
	{RoleVPIT, 4, []string{"vp it", "head of it", "responsable informatique", "vp information"}},
	{RoleVPDigital, 4, []string{"head of digital", "vp digital", "digital"}},
	{RoleCEO, 3, []string{"chief executive officer", "ceo", "directeur general", "president", "fondateur", "founder", "managing director", "gerant"}},
	{RoleCFO, 3, []string{"chief financial officer", "cfo", "daf", "directeur financier", "finance director"}},
	{RoleCOO, 3, []string{"chief operating officer", "coo", "directeur des operations"}},
	{RoleCHRO, 2, []string{"chief human resources", "chro", "drh", "directeur des ressources humaines", "head of people"}},
	{RoleCMO, 2, []string{"chief marketing officer", "cmo", "directeur marketing"}},
	{RoleVPSales, 2, []string{"chief revenue officer", "cro", "sales", "commercial", "revenue"}},
	{RoleVPOperations, 2, []string{"operations", "supply chain"}},
	{RoleBUHead, 2, []string{"business unit", "bu head", "general manager", "directeur de bu"}},
}

// InferRole maps a job title onto a role and its default sales
// relevance. Unmatched titles map to Other with relevance 1.
func InferRole(title string) (string, int) {
	folded := FoldName(title)
	for _, rule := range roleTable {
		for _, kw := range rule.keywords {
			if matchKeyword(folded, kw) {
				return rule.role, rule.relevance
			}
		}
	}
	return RoleOther, 1
}

// matchKeyword matches multi-word and long keywords by substring and
// short acronyms ("cio", "dsi") by whole token, so "sociologist" never
// matches "cio".
func matchKeyword(folded, keyword string) bool {
	if strings.Contains(keyword, " ") || len(keyword) > 4 {
		return strings.Contains(folded, keyword)
	}
	tokens := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, tok := range tokens {
		if tok == keyword {
			return true
		}
	}
	return false
}
