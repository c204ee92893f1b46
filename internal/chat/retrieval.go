package chat

import (
	"context"
	"errors"
	"sort"
	"time"

	"tableflow/maitre/internal/config"
	"tableflow/maitre/internal/knowledge"
	"tableflow/maitre/pkg/logging"
)

// QueryEmbedder turns text into a query vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex answers nearest-neighbor queries over indexed entries.
type VectorIndex interface {
	Query(ctx context.Context, tenantID string, embedding []float32, topK int, categoryID string) ([]knowledge.Match, error)
}

// EntryFinder resolves matched ids into full knowledge entries.
type EntryFinder interface {
	FindActiveByIDs(ctx context.Context, tenantID string, ids []string) ([]knowledge.Entry, error)
}

// HypotheticalEmbedder is the HyDE second-stage hook. A nil vector with a nil
// error means generation produced nothing usable.
type HypotheticalEmbedder interface {
	GenerateAndEmbed(ctx context.Context, query string) ([]float32, error)
}

// RetrievedEntry pairs a knowledge entry with its best similarity score.
type RetrievedEntry struct {
	Entry knowledge.Entry
	Score float64
}

// RetrievalResult is the outcome of one hybrid retrieval. MaxScore is the
// highest raw similarity observed across both stages, before any threshold
// filtering, so it reflects how close the nearest entry was even on a miss.
type RetrievalResult struct {
	Entries  []RetrievedEntry
	MaxScore float64
	Found    bool
}

// Retriever runs the two-stage direct + HyDE retrieval pipeline.
type Retriever struct {
	embedder QueryEmbedder
	index    VectorIndex
	entries  EntryFinder
	hyde     HypotheticalEmbedder
	cfg      config.Retrieval
	logger   logging.Logger
}

func NewRetriever(embedder QueryEmbedder, index VectorIndex, entries EntryFinder, hyde HypotheticalEmbedder, cfg config.Retrieval, logger logging.Logger) (*Retriever, error) {
	if embedder == nil || index == nil || entries == nil {
		return nil, errors.New("embedder, index and entry finder are required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		entries:  entries,
		hyde:     hyde,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Retrieve runs the direct stage, escalates to HyDE when the direct stage
// came back weak, merges both result sets and resolves the survivors into
// full entries in rank order.
func (r *Retriever) Retrieve(ctx context.Context, tenantID, query, categoryID string) (RetrievalResult, error) {
	start := time.Now()
	defer func() {
		retrievalDuration.Observe(time.Since(start).Seconds())
	}()

	embedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return RetrievalResult{}, err
	}

	direct, err := r.index.Query(ctx, tenantID, embedding, r.cfg.TopK, categoryID)
	if err != nil {
		return RetrievalResult{}, err
	}
	retrievalQueriesTotal.WithLabelValues("direct").Inc()

	maxScore := maxMatchScore(direct)
	kept := filterByThreshold(direct, r.cfg.DirectThreshold)

	// Second stage: the direct pass found nothing, or its best hit was not
	// convincing enough to skip the hypothetical-answer detour. The index's
	// result ordering is informational, so the trigger compares the computed
	// maximum rather than the first row.
	if r.hyde != nil && (len(direct) == 0 || maxScore < r.cfg.HydeTrigger) {
		hydeVec, hydeErr := r.hyde.GenerateAndEmbed(ctx, query)
		switch {
		case hydeErr != nil:
			if r.logger != nil {
				r.logger.WithError(hydeErr).Warn("HyDE generation failed; using direct results only")
			}
		case hydeVec == nil:
			// Empty generation; nothing to embed.
		default:
			hydeMatches, queryErr := r.index.Query(ctx, tenantID, hydeVec, r.cfg.TopK, categoryID)
			if queryErr != nil {
				if r.logger != nil {
					r.logger.WithError(queryErr).Warn("HyDE vector query failed; using direct results only")
				}
			} else {
				retrievalQueriesTotal.WithLabelValues("hyde").Inc()
				if hydeMax := maxMatchScore(hydeMatches); hydeMax > maxScore {
					maxScore = hydeMax
				}
				kept = mergeMatches(kept, filterByThreshold(hydeMatches, r.cfg.HydeThreshold), r.cfg.TopK)
			}
		}
	}

	retrievalResultsCount.Observe(float64(len(kept)))
	if len(kept) == 0 {
		return RetrievalResult{MaxScore: maxScore}, nil
	}

	ids := make([]string, 0, len(kept))
	scores := make(map[string]float64, len(kept))
	for _, match := range kept {
		ids = append(ids, match.EntryID)
		scores[match.EntryID] = match.Score
	}

	entries, err := r.entries.FindActiveByIDs(ctx, tenantID, ids)
	if err != nil {
		return RetrievalResult{}, err
	}

	retrieved := make([]RetrievedEntry, 0, len(entries))
	for _, entry := range entries {
		retrieved = append(retrieved, RetrievedEntry{
			Entry: entry,
			Score: scores[entry.ID],
		})
	}

	return RetrievalResult{
		Entries:  retrieved,
		MaxScore: maxScore,
		Found:    len(retrieved) > 0,
	}, nil
}

func maxMatchScore(matches []knowledge.Match) float64 {
	best := 0.0
	for _, match := range matches {
		if match.Score > best {
			best = match.Score
		}
	}
	return best
}

func filterByThreshold(matches []knowledge.Match, threshold float64) []knowledge.Match {
	kept := make([]knowledge.Match, 0, len(matches))
	for _, match := range matches {
		if match.Score >= threshold {
			kept = append(kept, match)
		}
	}
	return kept
}

// mergeMatches combines both stages, deduplicating by entry id and keeping
// the higher score for duplicates. The result is sorted by score descending
// and capped at topK.
func mergeMatches(direct, hyde []knowledge.Match, topK int) []knowledge.Match {
	best := make(map[string]float64, len(direct)+len(hyde))
	order := make([]string, 0, len(direct)+len(hyde))
	for _, match := range append(append([]knowledge.Match{}, direct...), hyde...) {
		if existing, ok := best[match.EntryID]; ok {
			if match.Score > existing {
				best[match.EntryID] = match.Score
			}
			continue
		}
		best[match.EntryID] = match.Score
		order = append(order, match.EntryID)
	}

	merged := make([]knowledge.Match, 0, len(order))
	for _, id := range order {
		merged = append(merged, knowledge.Match{EntryID: id, Score: best[id]})
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}
