// Package router selects an embedding model and scoring mode for a
// corpus/query pair when none is configured explicitly. The decision table
// is data: adding a content class or model is an entry, not a branch.
package router

import (
	"github.com/kailas-cloud/rankfuse/internal/domain"
	"github.com/kailas-cloud/rankfuse/internal/domain/mode"
)

// Class is a coarse content classification.
type Class string

// Recognized content classes.
const (
	ClassCode         Class = "code"
	ClassProse        Class = "prose"
	ClassMultilingual Class = "multilingual"
	ClassMixed        Class = "mixed"
	ClassUnknown      Class = "unknown"
)

// Decision is a routing outcome: which model to embed with and which
// scoring mode to run.
type Decision struct {
	Model domain.ModelID
	Mode  mode.Mode
}

// Table maps content classes to routing decisions.
type Table map[Class]Decision

// DefaultTable returns the routing policy. The code model is selected for
// code input only: it degrades catastrophically on prose, while the
// general model degrades only moderately on code, so every uncertain
// class routes to the general model.
func DefaultTable() Table {
	return Table{
		ClassCode:         {Model: domain.ModelCode, Mode: mode.Hybrid},
		ClassProse:        {Model: domain.ModelGeneral, Mode: mode.Hybrid},
		ClassMultilingual: {Model: domain.ModelGeneral, Mode: mode.Semantic},
		ClassMixed:        {Model: domain.ModelGeneral, Mode: mode.Hybrid},
		ClassUnknown:      {Model: domain.ModelGeneral, Mode: mode.Semantic},
	}
}

// Classifier assigns a content class to a text sample. The heuristic is a
// replaceable strategy; only the policy outcomes are contractual.
type Classifier interface {
	Classify(sample string) Class
}

// Router resolves routing decisions from a corpus tag or a text sample.
type Router struct {
	table      Table
	classifier Classifier
}

// New creates a router. A nil table uses DefaultTable, a nil classifier
// uses the built-in heuristic.
func New(table Table, classifier Classifier) *Router {
	if table == nil {
		table = DefaultTable()
	}
	if classifier == nil {
		classifier = NewHeuristicClassifier()
	}
	return &Router{table: table, classifier: classifier}
}

// Select resolves a decision. A corpus tag naming a known class wins;
// otherwise the sample is classified. Classes missing from the table fall
// back to the unknown entry.
func (r *Router) Select(corpusTag, sample string) Decision {
	class := Class(corpusTag)
	if _, ok := r.table[class]; !ok || corpusTag == "" {
		class = r.classifier.Classify(sample)
	}
	if d, ok := r.table[class]; ok {
		return d
	}
	if d, ok := r.table[ClassUnknown]; ok {
		return d
	}
	return Decision{Model: domain.ModelGeneral, Mode: mode.Semantic}
}
