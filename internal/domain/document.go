package domain

// Document is a scoring candidate: an opaque id, raw text, and an optional
// precomputed representation. Owned by the caller, immutable once scored.
type Document struct {
	id     string
	text   string
	repr   Representation
	corpus string
}

// NewDocument creates a document without a precomputed representation.
func NewDocument(id, text string) Document {
	return Document{id: id, text: text}
}

// NewDocumentWithRepresentation creates a document carrying a precomputed representation.
func NewDocumentWithRepresentation(id, text string, repr Representation) Document {
	return Document{id: id, text: text, repr: repr}
}

// WithCorpus returns a copy tagged with a corpus label.
func (d Document) WithCorpus(corpus string) Document {
	d.corpus = corpus
	return d
}

// WithRepresentation returns a copy carrying the given representation.
func (d Document) WithRepresentation(repr Representation) Document {
	d.repr = repr
	return d
}

// ID returns the document identifier.
func (d Document) ID() string { return d.id }

// Text returns the raw document text.
func (d Document) Text() string { return d.text }

// Representation returns the precomputed representation, empty if absent.
func (d Document) Representation() Representation { return d.repr }

// Corpus returns the corpus tag, empty if untagged.
func (d Document) Corpus() string { return d.corpus }
