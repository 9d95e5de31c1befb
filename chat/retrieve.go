package chat

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"
)

// retrievePassages performs similarity search and trims the candidates to a
// budgeted evidence set. It never returns an error: an unreachable collection
// or zero candidates is a valid "no evidence" state the synthesizer must
// handle, not a failed turn. The output is deterministic for a fixed
// (query, collection snapshot, budget).
func (e *Engine) retrievePassages(ctx context.Context, query string, state State) []Passage {
	if state.Collection == nil {
		e.logger.Warn("no active collection, answering without evidence")
		return nil
	}

	maxDocs := state.Params.MaxDocs
	if maxDocs <= 0 {
		maxDocs = e.opts.MaxDocs
	}
	threshold := e.opts.RelevanceThreshold
	if state.Params.HasThreshold {
		threshold = state.Params.RelevanceThreshold
	}

	// Over-fetch so budget trimming still has enough qualifying candidates.
	hits, err := state.Collection.SimilaritySearch(ctx, query, maxDocs*e.opts.OverFetchFactor)
	if err != nil {
		e.logger.WithError(err).WithField("collection", state.Collection.Name()).
			Warn("similarity search failed, answering without evidence")
		return nil
	}
	if len(hits) == 0 {
		return nil
	}

	// Collapse duplicate (source, text) pairs, keeping the highest score.
	type key struct{ source, text string }
	best := make(map[key]int, len(hits))
	deduped := make([]Passage, 0, len(hits))
	for _, hit := range hits {
		k := key{hit.Source, hit.Text}
		if idx, ok := best[k]; ok {
			if hit.Score > deduped[idx].Score {
				deduped[idx] = Passage{
					Text:     hit.Text,
					Score:    hit.Score,
					Source:   hit.Source,
					Metadata: hit.Metadata,
				}
			}
			continue
		}
		best[k] = len(deduped)
		deduped = append(deduped, Passage{
			Text:     hit.Text,
			Score:    hit.Score,
			Source:   hit.Source,
			Metadata: hit.Metadata,
		})
	}

	// Descending score, with the source identifier breaking ties so equal
	// scores never reorder between runs.
	sort.SliceStable(deduped, func(i, j int) bool {
		if deduped[i].Score != deduped[j].Score {
			return deduped[i].Score > deduped[j].Score
		}
		return deduped[i].Source < deduped[j].Source
	})

	budget := e.opts.ContextTokenBudget
	used := 0
	accepted := make([]Passage, 0, maxDocs)
	for _, passage := range deduped {
		if len(accepted) >= maxDocs {
			break
		}
		if passage.Score < threshold {
			// Sorted descending: everything after is below threshold too.
			break
		}
		cost := e.tokenizer.Count(state.Settings.Model, passage.Text)
		if used+cost > budget {
			break
		}
		used += cost
		accepted = append(accepted, passage)

		if e.opts.VerboseSimilarities {
			e.logger.WithFields(logrus.Fields{
				"source": passage.Source,
				"score":  passage.Score,
				"tokens": cost,
			}).Debug("accepted passage")
		}
	}

	e.logger.WithFields(logrus.Fields{
		"candidates": len(hits),
		"accepted":   len(accepted),
		"tokens":     used,
		"budget":     budget,
	}).Debug("retrieval complete")

	return accepted
}
