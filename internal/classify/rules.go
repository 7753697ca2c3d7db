// Package classify assigns taxonomy labels to document text. Each taxonomy is
// a data table of rules; the classification logic never changes when labels
// or triggers are added.
package classify

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/JakeFAU/eu-innovation-monitor/internal/document"
)

// Mode selects how a table turns matching rules into labels.
type Mode string

const (
	// ModeFirst emits the label of the earliest matching rule only.
	ModeFirst Mode = "first"
	// ModeAll emits the label of every matching rule.
	ModeAll Mode = "all"
)

// Rule maps one label to its triggers. The rule matches when any trigger kind
// fires; AllOf fires only when every listed substring is present.
type Rule struct {
	Label    string   `yaml:"label"`
	Contains []string `yaml:"contains,omitempty"`
	AllOf    []string `yaml:"all_of,omitempty"`
	Regex    []string `yaml:"regex,omitempty"`
	Lead     []string `yaml:"lead,omitempty"`
	Domains  []string `yaml:"domains,omitempty"`
}

// Table is the rule data for one taxonomy.
type Table struct {
	Mode       Mode     `yaml:"mode"`
	LeadWindow int      `yaml:"lead_window,omitempty"`
	Sorted     bool     `yaml:"sorted,omitempty"`
	Rules      []Rule   `yaml:"rules"`
	Default    []string `yaml:"default,omitempty"`
	Fallback   *Rule    `yaml:"fallback,omitempty"`
}

// RuleSet holds the four taxonomy tables.
type RuleSet struct {
	DocType    Table `yaml:"doc_type"`
	Programme  Table `yaml:"programme"`
	Instrument Table `yaml:"instrument"`
	TechArea   Table `yaml:"tech_area"`
}

type compiledRule struct {
	Rule
	patterns []*regexp.Regexp
}

type compiledTable struct {
	mode       Mode
	leadWindow int
	sorted     bool
	rules      []compiledRule
	defaults   []string
	fallback   *compiledRule
}

// Classifier applies a compiled RuleSet.
type Classifier struct {
	docType    compiledTable
	programme  compiledTable
	instrument compiledTable
	techArea   compiledTable
}

// New compiles the rule set. Invalid regexes or unlabeled rules are reported.
func New(rs RuleSet) (*Classifier, error) {
	var c Classifier
	tables := []struct {
		name string
		in   Table
		out  *compiledTable
	}{
		{"doc_type", rs.DocType, &c.docType},
		{"programme", rs.Programme, &c.programme},
		{"instrument", rs.Instrument, &c.instrument},
		{"tech_area", rs.TechArea, &c.techArea},
	}
	for _, tbl := range tables {
		compiled, err := compileTable(tbl.in)
		if err != nil {
			return nil, fmt.Errorf("compile %s table: %w", tbl.name, err)
		}
		*tbl.out = compiled
	}
	if c.docType.mode != ModeFirst || len(c.docType.defaults) != 1 {
		return nil, fmt.Errorf("doc_type table must use mode %q with exactly one default label", ModeFirst)
	}
	return &c, nil
}

// Classify labels text along all four taxonomies. finalURL feeds domain
// triggers.
func (c *Classifier) Classify(text, finalURL string) document.Labels {
	lower := strings.ToLower(text)
	url := strings.ToLower(finalURL)
	return document.Labels{
		DocType:    c.DocType(lower),
		Programme:  c.programme.apply(lower, url),
		Instrument: c.instrument.apply(lower, url),
		TechArea:   c.techArea.apply(lower, url),
	}
}

// DocType returns the single document type label for text.
func (c *Classifier) DocType(text string) string {
	return c.docType.apply(strings.ToLower(text), "")[0]
}

// Programme returns the funding programme labels for text and URL.
func (c *Classifier) Programme(text, finalURL string) []string {
	return c.programme.apply(strings.ToLower(text), strings.ToLower(finalURL))
}

// Instrument returns the financial instrument labels for text.
func (c *Classifier) Instrument(text string) []string {
	return c.instrument.apply(strings.ToLower(text), "")
}

// TechArea returns the technology area labels for text.
func (c *Classifier) TechArea(text string) []string {
	return c.techArea.apply(strings.ToLower(text), "")
}

func compileTable(t Table) (compiledTable, error) {
	mode := t.Mode
	if mode == "" {
		mode = ModeAll
	}
	if mode != ModeFirst && mode != ModeAll {
		return compiledTable{}, fmt.Errorf("unknown mode %q", t.Mode)
	}
	out := compiledTable{
		mode:       mode,
		leadWindow: t.LeadWindow,
		sorted:     t.Sorted,
		defaults:   append([]string(nil), t.Default...),
	}
	for _, r := range t.Rules {
		cr, err := compileRule(r)
		if err != nil {
			return compiledTable{}, err
		}
		out.rules = append(out.rules, cr)
	}
	if t.Fallback != nil {
		cr, err := compileRule(*t.Fallback)
		if err != nil {
			return compiledTable{}, fmt.Errorf("fallback: %w", err)
		}
		out.fallback = &cr
	}
	return out, nil
}

func compileRule(r Rule) (compiledRule, error) {
	if strings.TrimSpace(r.Label) == "" {
		return compiledRule{}, fmt.Errorf("rule without label")
	}
	cr := compiledRule{Rule: r}
	for _, expr := range r.Regex {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return compiledRule{}, fmt.Errorf("rule %q: compile %q: %w", r.Label, expr, err)
		}
		cr.patterns = append(cr.patterns, re)
	}
	return cr, nil
}

// apply expects lower-cased text and URL.
func (t compiledTable) apply(text, url string) []string {
	var labels []string
	seen := make(map[string]struct{})
	for i := range t.rules {
		r := &t.rules[i]
		if !r.matches(text, url, t.leadWindow) {
			continue
		}
		if t.mode == ModeFirst {
			return []string{r.Label}
		}
		if _, dup := seen[r.Label]; dup {
			continue
		}
		seen[r.Label] = struct{}{}
		labels = append(labels, r.Label)
	}
	if len(labels) > 0 {
		if t.sorted {
			sort.Strings(labels)
		}
		return labels
	}
	if t.fallback != nil && t.fallback.matches(text, url, t.leadWindow) {
		return []string{t.fallback.Label}
	}
	return append([]string{}, t.defaults...)
}

func (r *compiledRule) matches(text, url string, leadWindow int) bool {
	for _, s := range r.Contains {
		if strings.Contains(text, strings.ToLower(s)) {
			return true
		}
	}
	if len(r.AllOf) > 0 {
		all := true
		for _, s := range r.AllOf {
			if !strings.Contains(text, strings.ToLower(s)) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	for _, re := range r.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	if len(r.Lead) > 0 {
		lead := leadOf(text, leadWindow)
		for _, s := range r.Lead {
			if strings.Contains(lead, strings.ToLower(s)) {
				return true
			}
		}
	}
	if url != "" {
		for _, d := range r.Domains {
			if strings.Contains(url, strings.ToLower(d)) {
				return true
			}
		}
	}
	return false
}

func leadOf(text string, window int) string {
	if window <= 0 {
		return text
	}
	n := 0
	for i := range text {
		if n == window {
			return text[:i]
		}
		n++
	}
	return text
}
