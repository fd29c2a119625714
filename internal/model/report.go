package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyArticleURL = errors.New("observation row has empty article_url")
	ErrDanglingAttrs   = errors.New("observation row has attributes but no target link")
	ErrDuplicateLink   = errors.New("duplicate target link for article")
)

// Article is what we learned about one monitored page in a single run.
type Article struct {
	URL             string  `json:"article_url"`
	Title           string  `json:"title"`
	PublicationDate *string `json:"publication_date,omitempty"`
}

// LinkObservation is the atomic unit stored and diffed: one brand link seen on
// one monitored page, or the explicit "no link found" marker for that page.
// TargetLink, Nofollow and AnchorText are pointers because absence is
// meaningful: a nil TargetLink means no matching link existed on the page,
// which is not the same thing as an empty href.
type LinkObservation struct {
	ArticleURL      string  `json:"article_url"`
	Title           string  `json:"title"`
	PublicationDate *string `json:"publication_date,omitempty"`
	TargetLink      *string `json:"target_link"`
	Nofollow        *bool   `json:"nofollow"`
	AnchorText      *string `json:"anchor_text"`
}

// HasLink reports whether this row records an actual link rather than the
// "nothing found" marker.
func (o LinkObservation) HasLink() bool {
	return o.TargetLink != nil
}

// Change classifies one difference between two successive reports.
type Change struct {
	ArticleURL string `json:"article_url"`
	Change     string `json:"change"`
}

// Report is the full set of link observations captured in one run. It is
// immutable once saved and becomes the diff baseline for the next run.
type Report struct {
	RunID     uuid.UUID         `json:"run_id"`
	CreatedAt time.Time         `json:"created_at"`
	Rows      []LinkObservation `json:"rows"`
}

// NewReport creates an empty report stamped with a fresh run ID.
func NewReport() *Report {
	return &Report{
		RunID:     uuid.New(),
		CreatedAt: time.Now(),
	}
}

// RowsFor returns all rows belonging to the given article URL, in report order.
func (r *Report) RowsFor(articleURL string) []LinkObservation {
	var rows []LinkObservation
	for _, row := range r.Rows {
		if row.ArticleURL == articleURL {
			rows = append(rows, row)
		}
	}
	return rows
}

// Validate checks the structural invariants the diff depends on. A report that
// fails validation must never be used as a diff baseline, and a run must never
// overwrite the snapshot after loading an invalid one.
func (r *Report) Validate() error {
	type linkKey struct {
		article string
		link    string
	}
	seen := make(map[linkKey]bool)

	for i, row := range r.Rows {
		if row.ArticleURL == "" {
			return fmt.Errorf("row %d: %w", i, ErrEmptyArticleURL)
		}
		if row.TargetLink == nil {
			if row.Nofollow != nil || row.AnchorText != nil {
				return fmt.Errorf("row %d (%s): %w", i, row.ArticleURL, ErrDanglingAttrs)
			}
			continue
		}
		key := linkKey{article: row.ArticleURL, link: *row.TargetLink}
		if seen[key] {
			return fmt.Errorf("row %d (%s, %s): %w", i, row.ArticleURL, *row.TargetLink, ErrDuplicateLink)
		}
		seen[key] = true
	}
	return nil
}

// String / Bool build the optional fields without cluttering call sites.
func String(s string) *string { return &s }
func Bool(b bool) *bool       { return &b }
