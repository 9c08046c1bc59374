package gallery

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

// TagCategories are the suggested tags and categories offered to uploaders.
type TagCategories struct {
	Tags       []string `yaml:"tags" json:"tagList"`
	Categories []string `yaml:"categories" json:"categoryList"`
}

// LoadTagCategories parses the embedded presets.
func LoadTagCategories() (TagCategories, error) {
	var presets TagCategories
	if err := yaml.Unmarshal(presetsYAML, &presets); err != nil {
		return TagCategories{}, err
	}
	return presets, nil
}
