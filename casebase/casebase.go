package casebase

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/pensionlab/guidancecore/config"
	"github.com/pensionlab/guidancecore/errors"
	"github.com/pensionlab/guidancecore/vectorstore"
)

type (
	// ScoredCase pairs a case with its ranking score: raw similarity
	// plus any quality boost.
	ScoredCase struct {
		Case  *Case
		Score float64
	}

	CaseBase struct {
		store  vectorstore.Store[*Case]
		conf   *config.RetrievalConfig
		logger *slog.Logger
	}
)

func New(store vectorstore.Store[*Case], conf *config.RetrievalConfig, logger *slog.Logger) *CaseBase {
	return &CaseBase{
		store:  store,
		conf:   conf,
		logger: logger,
	}
}

// Add persists a new case. Cases only come from consultations that
// passed compliance validation; anything else is a caller bug.
func (b *CaseBase) Add(ctx context.Context, c *Case) (*Case, error) {
	if c == nil {
		return nil, errors.Wrap(errors.ErrInvalidArgument, "case is nil")
	}
	if c.CustomerSituation == "" || c.GuidanceProvided == "" {
		return nil, errors.Wrap(errors.ErrInvalidArgument, "case is missing situation or guidance")
	}
	if !c.Outcome.CompliancePassed {
		return nil, errors.Wrap(errors.ErrInvalidArgument, "cases must come from compliant consultations")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	return b.store.Add(ctx, c)
}

// RetrieveSimilar ranks by raw cosine similarity; cases do not decay by
// age the way episodic memories do. Exemplary interactions (dialogue
// quality at or above the boost threshold) receive an additive bonus.
func (b *CaseBase) RetrieveSimilar(ctx context.Context, queryEmbedding []float32, topK int, taskType string) ([]ScoredCase, error) {
	filters := map[string]any{}
	if taskType != "" {
		filters["task_type"] = taskType
	}

	scored, err := b.store.Search(ctx, queryEmbedding, topK, filters)
	if err != nil {
		return nil, err
	}

	results := make([]ScoredCase, len(scored))
	for i, s := range scored {
		score := s.Similarity
		if dt := s.Entity.DialogueTechniques; dt != nil && dt.QualityScore >= b.conf.QualityBoostThreshold {
			score += b.conf.QualityBoost
		}
		results[i] = ScoredCase{Case: s.Entity, Score: score}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// FindNearDuplicate returns the closest existing case when its raw
// similarity reaches threshold, otherwise nil. Used for insert dedup.
func (b *CaseBase) FindNearDuplicate(ctx context.Context, queryEmbedding []float32, threshold float64) (*Case, error) {
	scored, err := b.store.Search(ctx, queryEmbedding, 1, nil)
	if err != nil {
		return nil, err
	}
	if len(scored) > 0 && scored[0].Similarity >= threshold {
		return scored[0].Entity, nil
	}
	return nil, nil
}

func (b *CaseBase) Count(ctx context.Context) (int64, error) {
	return b.store.Count(ctx)
}
