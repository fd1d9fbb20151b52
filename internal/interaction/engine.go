// Package interaction evaluates pairwise drug interactions against a static,
// symmetric rule table.
package interaction

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/dosewise/internal/models"
)

//go:embed rules.yaml
var defaultRules []byte

// DefaultRulesYAML returns the embedded rule table as shipped.
func DefaultRulesYAML() []byte {
	return append([]byte(nil), defaultRules...)
}

// SafeMessage is returned for pairs without a rule.
const SafeMessage = "No known interactions found."

// Rule is one entry of the table file.
type Rule struct {
	Drugs    []string        `yaml:"drugs" json:"drugs"`
	Severity models.Severity `yaml:"severity" json:"severity"`
	Message  string          `yaml:"message" json:"message"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Result is the outcome of a single pair lookup.
type Result struct {
	Severity models.Severity `json:"severity"`
	Message  string          `json:"message"`
}

// Finding is a non-safe interaction between a candidate and an existing drug.
type Finding struct {
	DrugName string          `json:"drugName"`
	Severity models.Severity `json:"severity"`
	Message  string          `json:"message"`
}

// PairFinding is a non-safe interaction inside a medication set.
type PairFinding struct {
	A        string          `json:"a"`
	B        string          `json:"b"`
	Severity models.Severity `json:"severity"`
	Message  string          `json:"message"`
}

// Engine is immutable after construction and safe for concurrent use.
type Engine struct {
	rules map[string]Result
	list  []Rule
}

// Load parses a YAML rule table.
func Load(r io.Reader) (*Engine, error) {
	var f ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("interaction: parse rules: %w", err)
	}
	return New(f.Rules)
}

// LoadFile parses the rule table at path.
func LoadFile(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("interaction: read rules: %w", err)
	}
	return Load(bytes.NewReader(data))
}

// Default returns an engine over the embedded table. It panics if the
// embedded file is malformed.
func Default() *Engine {
	e, err := Load(bytes.NewReader(defaultRules))
	if err != nil {
		panic(err)
	}
	return e
}

// New validates rules and builds the lookup table.
func New(rules []Rule) (*Engine, error) {
	e := &Engine{rules: make(map[string]Result, len(rules))}
	for i, r := range rules {
		if len(r.Drugs) != 2 {
			return nil, fmt.Errorf("interaction: rule %d: want exactly 2 drugs, got %d", i, len(r.Drugs))
		}
		if r.Severity != models.SeverityModerate && r.Severity != models.SeverityCritical {
			return nil, fmt.Errorf("interaction: rule %d: invalid severity %q", i, r.Severity)
		}
		k := pairKey(r.Drugs[0], r.Drugs[1])
		if _, dup := e.rules[k]; dup {
			return nil, fmt.Errorf("interaction: rule %d: duplicate pair %s", i, k)
		}
		e.rules[k] = Result{Severity: r.Severity, Message: r.Message}
		e.list = append(e.list, r)
	}
	return e, nil
}

// Rules returns the table in file order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.list))
	copy(out, e.list)
	return out
}

// CheckPair looks up the unordered pair, ignoring case and surrounding space.
func (e *Engine) CheckPair(a, b string) Result {
	if r, ok := e.rules[pairKey(a, b)]; ok {
		return r
	}
	return Result{Severity: models.SeveritySafe, Message: SafeMessage}
}

// CheckAgainstSet returns one finding per existing medication that interacts
// with candidate, in input order. Safe pairs are omitted.
func (e *Engine) CheckAgainstSet(candidate string, existing []models.Medication) []Finding {
	out := []Finding{}
	for _, m := range existing {
		r := e.CheckPair(candidate, m.Name)
		if r.Severity == models.SeveritySafe {
			continue
		}
		out = append(out, Finding{DrugName: m.Name, Severity: r.Severity, Message: r.Message})
	}
	return out
}

// Matrix returns every interacting pair within meds.
func (e *Engine) Matrix(meds []models.Medication) []PairFinding {
	out := []PairFinding{}
	for i := 0; i < len(meds); i++ {
		for j := i + 1; j < len(meds); j++ {
			r := e.CheckPair(meds[i].Name, meds[j].Name)
			if r.Severity == models.SeveritySafe {
				continue
			}
			out = append(out, PairFinding{A: meds[i].Name, B: meds[j].Name, Severity: r.Severity, Message: r.Message})
		}
	}
	return out
}

// Worst returns the highest severity among findings, Safe when empty.
func Worst(findings []Finding) models.Severity {
	worst := models.SeveritySafe
	for _, f := range findings {
		if f.Severity.Rank() > worst.Rank() {
			worst = f.Severity
		}
	}
	return worst
}

func pairKey(a, b string) string {
	p := []string{normalize(a), normalize(b)}
	sort.Strings(p)
	return p[0] + "+" + p[1]
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
