// Package diff computes semantic changes between two successive reports.
package diff

import (
	"fmt"

	"linkwatch/internal/model"
)

// Engine compares reports for a single brand. The brand name only feeds the
// change wording, never the matching.
type Engine struct {
	brand string
}

// NewEngine creates a diff engine producing messages about the given brand.
func NewEngine(brand string) *Engine {
	return &Engine{brand: brand}
}

// Changes walks the current report in row order and classifies each row
// against the previous report. Order matters: consumers read the resulting
// notifications sequentially, so no secondary sort is applied.
//
// Classification per current row, keyed by article URL:
//   - nil link while a previous row for the page carried a real link: the
//     link disappeared.
//   - real link with no previous row carrying the same literal link: the
//     link appeared.
//   - real link whose previous row carries a different nofollow flag: the
//     attribute flipped.
//   - anything else: no change.
//
// A page absent from the previous report is a newly monitored one; its real
// links count as appeared and its nil row produces nothing, since there was
// nothing to disappear.
func (e *Engine) Changes(previous, current *model.Report) []model.Change {
	var changes []model.Change

	for _, row := range current.Rows {
		prevRows := previous.RowsFor(row.ArticleURL)

		if !row.HasLink() {
			if hadLink(prevRows) {
				changes = append(changes, model.Change{
					ArticleURL: row.ArticleURL,
					Change:     fmt.Sprintf("%s link is absent", e.brand),
				})
			}
			continue
		}

		prev, found := findLink(prevRows, *row.TargetLink)
		if !found {
			changes = append(changes, model.Change{
				ArticleURL: row.ArticleURL,
				Change:     fmt.Sprintf("%s link %s appeared on the website", e.brand, *row.TargetLink),
			})
			continue
		}

		if prev.Nofollow != nil && row.Nofollow != nil && *prev.Nofollow != *row.Nofollow {
			changes = append(changes, model.Change{
				ArticleURL: row.ArticleURL,
				Change: fmt.Sprintf("For link %s nofollow attribute was changed to %t",
					*row.TargetLink, *row.Nofollow),
			})
		}
	}

	return changes
}

// hadLink reports whether any previous row for the page carried a real link.
func hadLink(rows []model.LinkObservation) bool {
	for _, row := range rows {
		if row.HasLink() {
			return true
		}
	}
	return false
}

// findLink locates the previous row with the same literal target link.
func findLink(rows []model.LinkObservation, target string) (model.LinkObservation, bool) {
	for _, row := range rows {
		if row.HasLink() && *row.TargetLink == target {
			return row, true
		}
	}
	return model.LinkObservation{}, false
}
