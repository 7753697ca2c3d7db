package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ruleFile lets a YAML file replace individual tables. Tables absent from the
// file keep the built-in rules.
type ruleFile struct {
	DocType    *Table `yaml:"doc_type"`
	Programme  *Table `yaml:"programme"`
	Instrument *Table `yaml:"instrument"`
	TechArea   *Table `yaml:"tech_area"`
}

// ParseRuleSet decodes YAML rule tables on top of DefaultRuleSet.
func ParseRuleSet(data []byte) (RuleSet, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return RuleSet{}, fmt.Errorf("decode rule tables: %w", err)
	}
	rs := DefaultRuleSet()
	if f.DocType != nil {
		rs.DocType = *f.DocType
	}
	if f.Programme != nil {
		rs.Programme = *f.Programme
	}
	if f.Instrument != nil {
		rs.Instrument = *f.Instrument
	}
	if f.TechArea != nil {
		rs.TechArea = *f.TechArea
	}
	return rs, nil
}

// LoadRuleSet reads rule tables from a YAML file.
func LoadRuleSet(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("read rule tables: %w", err)
	}
	return ParseRuleSet(data)
}

// Load returns the built-in classifier when path is empty, otherwise one
// compiled from the file.
func Load(path string) (*Classifier, error) {
	if path == "" {
		return Default(), nil
	}
	rs, err := LoadRuleSet(path)
	if err != nil {
		return nil, err
	}
	return New(rs)
}
