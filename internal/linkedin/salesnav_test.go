package linkedin

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeniorityURLCurrent(t *testing.T) {
	url := salesNavSeniorityURL(filterCurrentCompany, "123456", "Acme", "105015875", "France")

	assert.True(t, strings.HasPrefix(url, "https://www.linkedin.com/sales/search/people?query=(recentSearchParam%3A(id%3A"))
	assert.True(t, strings.HasSuffix(url, "&viewAllFilters=true"))

	assert.Contains(t, url, "type%3ASENIORITY_LEVEL")
	for _, facet := range []string{
		"(id%3A310%2Ctext%3ACXO%2CselectionType%3AINCLUDED)",
		"(id%3A300%2Ctext%3AVP%2CselectionType%3AINCLUDED)",
		"(id%3A320%2Ctext%3AOwner%2CselectionType%3AINCLUDED)",
		"(id%3A130%2Ctext%3AStrategic%2CselectionType%3AINCLUDED)",
	} {
		assert.Contains(t, url, facet)
	}

	assert.Contains(t, url, "type%3ACURRENT_COMPANY")
	assert.Contains(t, url, "id%3Aurn%253Ali%253Aorganization%253A123456")
	assert.Contains(t, url, "text%3AAcme")
	assert.Contains(t, url, "parent%3A(id%3A0)")

	assert.Contains(t, url, "type%3AREGION")
	assert.Contains(t, url, "id%3A105015875%2Ctext%3AFrance")
}

func TestSeniorityURLPast(t *testing.T) {
	url := salesNavSeniorityURL(filterPastCompany, "123456", "Acme", "", "")

	assert.Contains(t, url, "type%3APAST_COMPANY")
	assert.NotContains(t, url, "type%3ACURRENT_COMPANY")
	assert.NotContains(t, url, "type%3AREGION")
}

func TestTitleURL(t *testing.T) {
	url := salesNavTitleURL("123456", "Acme", []string{"DSI", "manager IT"}, "105015875", "France")

	assert.Contains(t, url, "type%3ACURRENT_COMPANY")
	assert.Contains(t, url, "type%3ACURRENT_TITLE")
	assert.Contains(t, url, "(text%3ADSI%2CselectionType%3AINCLUDED)")
	assert.Contains(t, url, "(text%3Amanager%2520IT%2CselectionType%3AINCLUDED)")
	assert.Contains(t, url, "type%3AREGION")
	assert.NotContains(t, url, "SENIORITY_LEVEL")
}

func TestTitleURLNoRegion(t *testing.T) {
	url := salesNavTitleURL("123456", "Acme", []string{"CTO"}, "", "")

	assert.NotContains(t, url, "type%3AREGION")
}

func TestEncodeTitle(t *testing.T) {
	assert.Equal(t, "chef%2520de%2520projet", encodeTitle("chef de projet"))
	assert.Equal(t, "DSI", encodeTitle("DSI"))
}

func TestSearchIDsVary(t *testing.T) {
	a := salesNavSeniorityURL(filterCurrentCompany, "1", "X", "", "")
	b := salesNavSeniorityURL(filterCurrentCompany, "1", "X", "", "")

	// Ten-digit random search ids make repeated URLs distinct.
	assert.NotEqual(t, a, b)
}
