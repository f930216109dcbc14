// Package script runs declarative YAML analyses against a LogView session.
//
// A script lists queries (each evaluated on a named source, the initial log
// by default), labels, characterizations and comparisons:
//
//	name: rejected-claims
//	queries:
//	  - name: rejected
//	    predicates:
//	      - {op: eq, field: concept:name, values: [Reject]}
//	  - name: slow_rejected
//	    source: rejected
//	    predicates:
//	      - {op: duration, values: ["86400", "1e9"]}
//	    labels: [slow]
//	characterize:
//	  - result: slow_rejected
//	compare:
//	  - q: rejected
//	    r: slow_rejected
package script

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"

	lverrors "github.com/logflow/logview/pkg/errors"
	"github.com/logflow/logview/pkg/logview"
	"github.com/logflow/logview/pkg/predicate"
	"github.com/logflow/logview/pkg/registry"
)

// Script is a parsed analysis.
type Script struct {
	Name string `yaml:"name"`

	// Log is the initial log path; the command line may override it.
	Log string `yaml:"log,omitempty"`

	// Properties are the predicates measured by the "properties"
	// characterizer.
	Properties []predicate.Rule `yaml:"properties,omitempty"`

	Queries      []QuerySpec        `yaml:"queries"`
	Characterize []CharacterizeSpec `yaml:"characterize,omitempty"`
	Compare      []CompareSpec      `yaml:"compare,omitempty"`
	CompareMulti []MultiSpec        `yaml:"compare_multi,omitempty"`

	// Export lists result set names to write; "*" exports all of them.
	Export []string `yaml:"export,omitempty"`
}

// QuerySpec declares one evaluation.
type QuerySpec struct {
	Name       string           `yaml:"name"`
	Source     string           `yaml:"source,omitempty"`
	Predicates []predicate.Rule `yaml:"predicates"`
	Labels     []string         `yaml:"labels,omitempty"`
}

// CharacterizeSpec declares one characterization. Reference defaults to the
// initial log; With defaults to every attached characterizer.
type CharacterizeSpec struct {
	Result    string   `yaml:"result"`
	Reference string   `yaml:"reference,omitempty"`
	With      []string `yaml:"with,omitempty"`
}

// CompareSpec declares one two-set comparison.
type CompareSpec struct {
	Q    string   `yaml:"q"`
	R    string   `yaml:"r"`
	With []string `yaml:"with,omitempty"`
}

// MultiSpec declares one multi-set comparison, either over named results,
// over every result carrying Label, or, with neither, over all results.
type MultiSpec struct {
	Results []string `yaml:"results,omitempty"`
	Label   string   `yaml:"label,omitempty"`
	With    []string `yaml:"with,omitempty"`
}

// Parse decodes and validates a script. Unknown keys are rejected.
func Parse(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, lverrors.Wrap(err, lverrors.CodeInvalidFormat, "invalid analysis script")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lverrors.FileNotFound(path)
		}
		return nil, lverrors.Wrap(err, lverrors.CodeInvalidFormat, "cannot read analysis script")
	}
	return Parse(data)
}

// Validate checks that every reference points at the initial log or at a
// result set declared earlier in the script. Complements may be
// characterized and exported, but they have no provenance entry, so they
// cannot be the source of a query nor take part in a comparison. Every
// problem found is reported.
func (s *Script) Validate() error {
	var errs lverrors.MultiError

	// registered holds the names with a provenance entry, known adds the
	// complements.
	registered := map[string]bool{registry.InitialSourceName: true}
	known := map[string]bool{registry.InitialSourceName: true}
	for i, q := range s.Queries {
		if q.Name == "" {
			errs.Add(invalid("query without name", "query", i))
			continue
		}
		if q.Source != "" && !registered[q.Source] {
			if known[q.Source] {
				errs.Add(invalid("a complement cannot be the source of a query", "source", q.Source))
			} else {
				errs.Add(invalid("query source is not declared before use", "source", q.Source))
			}
		}
		for _, r := range q.Predicates {
			if _, err := predicate.FromRule(r); err != nil {
				errs.Add(lverrors.Wrapf(err, lverrors.CodeInvalidPredicate, "query %s", q.Name))
			}
		}
		registered[q.Name] = true
		known[q.Name] = true
		known[ComplementName(q.Name)] = true
	}
	for _, r := range s.Properties {
		if _, err := predicate.FromRule(r); err != nil {
			errs.Add(lverrors.Wrap(err, lverrors.CodeInvalidPredicate, "properties"))
		}
	}
	for _, c := range s.Characterize {
		if !known[c.Result] {
			errs.Add(invalid("characterized result set is not declared", "result", c.Result))
		}
		if c.Reference != "" && !known[c.Reference] {
			errs.Add(invalid("reference is not declared", "reference", c.Reference))
		}
	}
	for _, c := range s.Compare {
		if !registered[c.Q] || !registered[c.R] {
			errs.Add(invalid("compared result set is not a declared query", "pair", c.Q+","+c.R))
		}
	}
	for _, m := range s.CompareMulti {
		if len(m.Results) > 0 && m.Label != "" {
			errs.Add(invalid("results and label are exclusive", "label", m.Label))
		}
		for _, name := range m.Results {
			if !registered[name] {
				errs.Add(invalid("compared result set is not a declared query", "result", name))
			}
		}
	}
	for _, name := range s.Export {
		if name != "*" && !known[name] {
			errs.Add(invalid("exported result set is not declared", "result", name))
		}
	}
	return errs.Combined()
}

// Steps is the number of progress steps Run reports.
func (s *Script) Steps() int {
	return len(s.Queries) + len(s.Characterize) + len(s.Compare) + len(s.CompareMulti)
}

// ComplementName is the display name of the complement of a result set.
func ComplementName(name string) string {
	return logview.ComplementPrefix + name
}

func invalid(msg, key string, value interface{}) error {
	return lverrors.New(lverrors.CodeInvalidFormat, msg).WithContext(key, value)
}
