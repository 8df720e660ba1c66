package rulebase

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/pensionlab/guidancecore/errors"
	"github.com/pensionlab/guidancecore/internal/vecmath"
	"github.com/pensionlab/guidancecore/vectorstore"
	"github.com/samber/lo"
)

type (
	// ScoredRule pairs a rule with its ranking score. The score is
	// similarity times confidence: a semantically relevant but shaky
	// rule ranks below a slightly less relevant well-established one.
	ScoredRule struct {
		Rule  *Rule
		Score float64
	}

	RuleBase struct {
		store  vectorstore.Store[*Rule]
		logger *slog.Logger
	}
)

// candidateFactor over-fetches before the confidence re-rank so a
// high-confidence rule just outside the raw-similarity cut still ranks.
const candidateFactor = 3

func New(store vectorstore.Store[*Rule], logger *slog.Logger) *RuleBase {
	return &RuleBase{
		store:  store,
		logger: logger,
	}
}

// Add persists a new rule. Evidence must be non-empty at creation.
func (b *RuleBase) Add(ctx context.Context, r *Rule) (*Rule, error) {
	if r == nil {
		return nil, errors.Wrap(errors.ErrInvalidArgument, "rule is nil")
	}
	if r.Principle == "" {
		return nil, errors.Wrap(errors.ErrInvalidArgument, "rule principle is empty")
	}
	if len(r.SupportingEvidence) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidArgument, "rule needs supporting evidence at creation")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return nil, errors.Wrapf(errors.ErrInvalidArgument, "confidence %f out of [0,1]", r.Confidence)
	}

	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}

	return b.store.Add(ctx, r)
}

func (b *RuleBase) Get(ctx context.Context, id string) (*Rule, error) {
	return b.store.Get(ctx, id)
}

// RetrieveApplicable ranks rules by similarity * confidence.
func (b *RuleBase) RetrieveApplicable(ctx context.Context, queryEmbedding []float32, topK int, domain string) ([]ScoredRule, error) {
	if topK <= 0 {
		return []ScoredRule{}, nil
	}

	filters := map[string]any{}
	if domain != "" {
		filters["domain"] = domain
	}

	scored, err := b.store.Search(ctx, queryEmbedding, topK*candidateFactor, filters)
	if err != nil {
		return nil, err
	}

	results := lo.Map(scored, func(s vectorstore.Scored[*Rule], _ int) ScoredRule {
		return ScoredRule{Rule: s.Entity, Score: s.Similarity * s.Entity.Confidence}
	})

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// FindSimilar returns the most similar rule in the domain when its raw
// similarity reaches threshold, otherwise nil. Used to decide refine vs
// create during learning.
func (b *RuleBase) FindSimilar(ctx context.Context, queryEmbedding []float32, domain string, threshold float64) (*Rule, error) {
	filters := map[string]any{}
	if domain != "" {
		filters["domain"] = domain
	}

	scored, err := b.store.Search(ctx, queryEmbedding, 1, filters)
	if err != nil {
		return nil, err
	}
	if len(scored) > 0 && scored[0].Similarity >= threshold {
		return scored[0].Entity, nil
	}
	return nil, nil
}

// Refine applies one bounded confidence update and appends the evidence,
// then writes the rule back under its optimistic revision check. A lost
// race surfaces as ErrConflict; the caller re-reads and retries once.
func (b *RuleBase) Refine(ctx context.Context, r *Rule, ev Evidence, weight float64) error {
	if r == nil {
		return errors.Wrap(errors.ErrInvalidArgument, "rule is nil")
	}

	sign := 1.0
	if !ev.Supports {
		sign = -1.0
	}
	if ev.AddedAt.IsZero() {
		ev.AddedAt = time.Now()
	}

	r.Confidence = vecmath.Clamp01(r.Confidence + weight*sign)
	r.SupportingEvidence = append(r.SupportingEvidence, ev)
	r.UpdatedAt = time.Now()

	return b.store.Update(ctx, r)
}

func (b *RuleBase) Count(ctx context.Context) (int64, error) {
	return b.store.Count(ctx)
}
