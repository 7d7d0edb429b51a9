package linkedin

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Tuning holds the search vocabulary for executive discovery: the
// job-title keywords worth hunting for and the Sales Navigator region
// ID for each country.
type Tuning struct {
	TitleKeywords []string          `yaml:"title_keywords"`
	Regions       map[string]string `yaml:"regions"`
}

// DefaultTuning returns the built-in vocabulary, tuned for the French
// mid-market companies the audits mostly target.
func DefaultTuning() Tuning {
	return Tuning{
		TitleKeywords: []string{
			"DSI",
			"directeur informatique",
			"responsable informatique",
			"directeur des systemes d'information",
			"CIO",
			"CTO",
			"PMO",
			"manager IT",
			"chef de projet informatique",
			"responsable SI",
			"directeur digital",
		},
		Regions: map[string]string{
			"France":         "105015875",
			"Belgium":        "100565514",
			"Switzerland":    "106693272",
			"Luxembourg":     "104042105",
			"Canada":         "101174742",
			"United States":  "103644278",
			"United Kingdom": "101165590",
			"Germany":        "101282230",
			"Spain":          "105646813",
			"Italy":          "103350119",
			"Netherlands":    "102890719",
		},
	}
}

// LoadTuning reads tuning overrides from a YAML file. Keys present in
// the file replace their defaults wholesale; absent keys keep them.
func LoadTuning(path string) (Tuning, error) {
	tuning := DefaultTuning()

	data, err := os.ReadFile(path)
	if err != nil {
		return tuning, eris.Wrapf(err, "linkedin: read tuning %s", path)
	}

	// The YAML has a top-level "linkedin" key.
	var wrapper struct {
		LinkedIn Tuning `yaml:"linkedin"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return tuning, eris.Wrap(err, "linkedin: parse tuning")
	}

	if len(wrapper.LinkedIn.TitleKeywords) > 0 {
		tuning.TitleKeywords = wrapper.LinkedIn.TitleKeywords
	}
	if len(wrapper.LinkedIn.Regions) > 0 {
		tuning.Regions = wrapper.LinkedIn.Regions
	}
	return tuning, nil
}
