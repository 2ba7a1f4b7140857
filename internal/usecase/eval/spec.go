// Package eval runs a labeled query set through the ranking pipeline and
// aggregates Precision@1 and Mean Reciprocal Rank.
package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/rankfuse/internal/domain"
)

// DocumentSpec is one corpus document in an evaluation specification.
type DocumentSpec struct {
	ID     string `yaml:"id" json:"id"`
	Text   string `yaml:"text" json:"text"`
	Corpus string `yaml:"corpus,omitempty" json:"corpus,omitempty"`
}

// QuerySpec is one labeled query in an evaluation specification.
type QuerySpec struct {
	Query    string   `yaml:"query" json:"query"`
	Relevant []string `yaml:"relevant" json:"relevant"`
	Corpus   string   `yaml:"corpus,omitempty" json:"corpus,omitempty"`
}

// Spec is a parsed evaluation specification: the document set and the
// labeled queries evaluated against it. Loaded once, read-only afterwards.
type Spec struct {
	Documents []DocumentSpec `yaml:"documents" json:"documents"`
	Queries   []QuerySpec    `yaml:"queries" json:"queries"`
}

// Load reads and validates an evaluation specification from a YAML or JSON
// file. Any parse or validation failure aborts before scoring: partial
// specs produce misleading metrics.
func Load(path string) (Spec, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Spec{}, fmt.Errorf("read spec %s: %w", path, err)
	}

	var spec Spec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &spec)
	default:
		err = yaml.Unmarshal(data, &spec)
	}
	if err != nil {
		return Spec{}, fmt.Errorf("%w: parse %s: %w", domain.ErrSpecParse, path, err)
	}

	if err := spec.Validate(); err != nil {
		return Spec{}, fmt.Errorf("%w: %w", domain.ErrSpecParse, err)
	}
	return spec, nil
}

// Validate checks the specification for completeness.
func (s Spec) Validate() error {
	if len(s.Queries) == 0 {
		return fmt.Errorf("no queries")
	}
	if len(s.Documents) == 0 {
		return fmt.Errorf("no documents")
	}

	ids := make(map[string]bool, len(s.Documents))
	for i, d := range s.Documents {
		if d.ID == "" {
			return fmt.Errorf("document [%d] has no id", i)
		}
		if ids[d.ID] {
			return fmt.Errorf("duplicate document id %q", d.ID)
		}
		ids[d.ID] = true
	}

	for i, q := range s.Queries {
		if q.Query == "" {
			return fmt.Errorf("query [%d] is empty", i)
		}
		if len(q.Relevant) == 0 {
			return fmt.Errorf("query [%d] (%q) has no relevant ids", i, q.Query)
		}
		for _, id := range q.Relevant {
			if !ids[id] {
				return fmt.Errorf("query [%d] (%q) references unknown document %q", i, q.Query, id)
			}
		}
	}
	return nil
}

// CandidatesFor returns the candidate set for one query: documents whose
// corpus tag matches the query's, or the whole set when the query is
// untagged. The returned order follows specification order.
func (s Spec) CandidatesFor(q QuerySpec) []domain.Document {
	docs := make([]domain.Document, 0, len(s.Documents))
	for _, d := range s.Documents {
		if q.Corpus != "" && d.Corpus != "" && d.Corpus != q.Corpus {
			continue
		}
		docs = append(docs, domain.NewDocument(d.ID, d.Text).WithCorpus(d.Corpus))
	}
	return docs
}
