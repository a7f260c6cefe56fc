// Package domain contains the core types for the citation ranking pipeline:
// paper records on the way in, citation scores from the LLM scorer, and the
// per-paper score results produced by a ranking run.
package domain

import (
	"strings"
	"time"
)

// Author represents a paper author with an optional affiliation.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

// String returns a formatted string representation of the author.
func (a Author) String() string {
	if a.Affiliation == "" {
		return a.Name
	}
	return a.Name + " (" + a.Affiliation + ")"
}

// PaperRecord is an immutable input record for one ranking invocation.
// It carries the metadata the feature extractor and the citation scorer
// consume; the external stable identifier is owned by the upstream catalog,
// not by this pipeline.
type PaperRecord struct {
	// ExternalID is the stable identifier assigned by the source catalog
	// (e.g. "arxiv:2401.12345").
	ExternalID string `json:"external_id"`

	// Title is the paper title.
	Title string `json:"title"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract"`

	// Authors is the ordered author list.
	Authors []Author `json:"authors"`

	// PrimaryCategory is the primary subject classification (e.g. "cs.LG").
	PrimaryCategory string `json:"primary_category"`

	// Categories is the full classification list including the primary.
	Categories []string `json:"categories"`

	// PublishedAt is the publication timestamp. Nil when the source did not
	// provide one; downstream features degrade to missing-value sentinels.
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// AuthorNames returns the author names in input order, skipping blanks.
func (p *PaperRecord) AuthorNames() []string {
	names := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
