package rulebase_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/pensionlab/guidancecore/errors"
	"github.com/pensionlab/guidancecore/internal/mylog"
	"github.com/pensionlab/guidancecore/rulebase"
	"github.com/pensionlab/guidancecore/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuleBase(t *testing.T) *rulebase.RuleBase {
	t.Helper()
	store := vectorstore.NewInMemoryStore[*rulebase.Rule](3)
	return rulebase.New(store, mylog.NewLogger("error", "json"))
}

func validRule(embedding []float32, confidence float64) *rulebase.Rule {
	return &rulebase.Rule{
		Principle:  "always confirm whether the customer has taken regulated advice before discussing DB transfers",
		Domain:     "db_transfer",
		Confidence: confidence,
		SupportingEvidence: []rulebase.Evidence{
			{Source: "consultation-1", Snippet: "customer was not asked about prior advice", Supports: true},
		},
		Embedding: embedding,
	}
}

func TestRuleBase_Add(t *testing.T) {
	base := newTestRuleBase(t)

	added, err := base.Add(t.Context(), validRule([]float32{1, 0, 0}, 0.5))
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.EqualValues(t, 1, added.Revision)
	assert.False(t, added.CreatedAt.IsZero())
}

func TestRuleBase_Add_Validation(t *testing.T) {
	base := newTestRuleBase(t)
	ctx := t.Context()

	_, err := base.Add(ctx, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	noPrinciple := validRule([]float32{1, 0, 0}, 0.5)
	noPrinciple.Principle = ""
	_, err = base.Add(ctx, noPrinciple)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	noEvidence := validRule([]float32{1, 0, 0}, 0.5)
	noEvidence.SupportingEvidence = nil
	_, err = base.Add(ctx, noEvidence)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	badConfidence := validRule([]float32{1, 0, 0}, 1.3)
	_, err = base.Add(ctx, badConfidence)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestRuleBase_RetrieveApplicable_RanksBySimilarityTimesConfidence(t *testing.T) {
	base := newTestRuleBase(t)
	ctx := t.Context()

	// The closer rule is shaky; the slightly farther one is well
	// established and must outrank it.
	shaky := validRule([]float32{1, 0, 0}, 0.3)
	shaky.Principle = "shaky principle"

	established := validRule([]float32{0.9, 0.43589, 0}, 0.9)
	established.Principle = "established principle"

	_, err := base.Add(ctx, shaky)
	require.NoError(t, err)
	_, err = base.Add(ctx, established)
	require.NoError(t, err)

	results, err := base.RetrieveApplicable(ctx, []float32{1, 0, 0}, 2, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "established principle", results[0].Rule.Principle)
	assert.Equal(t, "shaky principle", results[1].Rule.Principle)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestRuleBase_RetrieveApplicable_DomainFilter(t *testing.T) {
	base := newTestRuleBase(t)
	ctx := t.Context()

	transfer := validRule([]float32{1, 0, 0}, 0.5)
	drawdown := validRule([]float32{1, 0, 0}, 0.5)
	drawdown.Domain = "drawdown"

	_, err := base.Add(ctx, transfer)
	require.NoError(t, err)
	_, err = base.Add(ctx, drawdown)
	require.NoError(t, err)

	results, err := base.RetrieveApplicable(ctx, []float32{1, 0, 0}, 10, "drawdown")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "drawdown", results[0].Rule.Domain)
}

func TestRuleBase_FindSimilar(t *testing.T) {
	base := newTestRuleBase(t)
	ctx := t.Context()

	added, err := base.Add(ctx, validRule([]float32{1, 0, 0}, 0.5))
	require.NoError(t, err)

	found, err := base.FindSimilar(ctx, []float32{1, 0, 0}, "db_transfer", 0.85)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, added.ID, found.ID)

	// Below the merge threshold nothing is returned.
	found, err = base.FindSimilar(ctx, []float32{0, 1, 0}, "db_transfer", 0.85)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRuleBase_Refine(t *testing.T) {
	base := newTestRuleBase(t)
	ctx := t.Context()

	rule, err := base.Add(ctx, validRule([]float32{1, 0, 0}, 0.5))
	require.NoError(t, err)

	supporting := rulebase.Evidence{Source: "consultation-2", Snippet: "same failure recurred", Supports: true}
	require.NoError(t, base.Refine(ctx, rule, supporting, 0.1))
	assert.InDelta(t, 0.6, rule.Confidence, 1e-9)
	assert.Len(t, rule.SupportingEvidence, 2)
	assert.EqualValues(t, 2, rule.Revision)

	contradicting := rulebase.Evidence{Source: "consultation-3", Snippet: "principle did not apply", Supports: false}
	require.NoError(t, base.Refine(ctx, rule, contradicting, 0.1))
	assert.InDelta(t, 0.5, rule.Confidence, 1e-9)
	assert.Len(t, rule.SupportingEvidence, 3, "contradicted rules keep their audit trail")
}

func TestRuleBase_Refine_ConfidenceStaysBounded(t *testing.T) {
	base := newTestRuleBase(t)
	ctx := t.Context()

	rule, err := base.Add(ctx, validRule([]float32{1, 0, 0}, 0.95))
	require.NoError(t, err)

	require.NoError(t, base.Refine(ctx, rule, rulebase.Evidence{Source: "c", Supports: true}, 0.2))
	assert.Equal(t, 1.0, rule.Confidence)

	low, err := base.Add(ctx, validRule([]float32{0, 1, 0}, 0.05))
	require.NoError(t, err)

	require.NoError(t, base.Refine(ctx, low, rulebase.Evidence{Source: "c", Supports: false}, 0.2))
	assert.Equal(t, 0.0, low.Confidence)
}

func TestRuleBase_Refine_StaleRevisionConflicts(t *testing.T) {
	base := newTestRuleBase(t)
	ctx := t.Context()

	rule, err := base.Add(ctx, validRule([]float32{1, 0, 0}, 0.5))
	require.NoError(t, err)

	// A second holder of the same rule refines first.
	winner := *rule
	require.NoError(t, base.Refine(ctx, &winner, rulebase.Evidence{Source: "w", Supports: true}, 0.1))

	err = base.Refine(ctx, rule, rulebase.Evidence{Source: "l", Supports: true}, 0.1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestRuleBase_Refine_RetrievedCopiesAreIndependent(t *testing.T) {
	base := newTestRuleBase(t)
	ctx := t.Context()

	_, err := base.Add(ctx, validRule([]float32{1, 0, 0}, 0.5))
	require.NoError(t, err)

	// Two consultations retrieve the same rule; each must hold its own
	// copy so the second writer is detected as stale.
	first, err := base.FindSimilar(ctx, []float32{1, 0, 0}, "db_transfer", 0.85)
	require.NoError(t, err)
	require.NotNil(t, first)
	second, err := base.FindSimilar(ctx, []float32{1, 0, 0}, "db_transfer", 0.85)
	require.NoError(t, err)
	require.NotNil(t, second)
	require.NotSame(t, first, second)

	require.NoError(t, base.Refine(ctx, first, rulebase.Evidence{Source: "w", Supports: true}, 0.1))

	err = base.Refine(ctx, second, rulebase.Evidence{Source: "l", Supports: true}, 0.1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	stored, err := base.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, stored.SupportingEvidence, 2, "only the winner's evidence lands")
	assert.EqualValues(t, 2, stored.Revision)
}

func TestRuleBase_Refine_ConcurrentRefinesSerialize(t *testing.T) {
	base := newTestRuleBase(t)
	ctx := t.Context()

	added, err := base.Add(ctx, validRule([]float32{1, 0, 0}, 0.5))
	require.NoError(t, err)

	const refiners = 4
	var wg sync.WaitGroup
	for i := 0; i < refiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ev := rulebase.Evidence{Source: fmt.Sprintf("consultation-%d", i), Supports: true}
			for {
				rule, err := base.Get(ctx, added.ID)
				if !assert.NoError(t, err) {
					return
				}
				err = base.Refine(ctx, rule, ev, 0.05)
				if err == nil {
					return
				}
				if !assert.True(t, errors.Is(err, errors.ErrConflict)) {
					return
				}
			}
		}(i)
	}
	wg.Wait()

	final, err := base.Get(ctx, added.ID)
	require.NoError(t, err)
	assert.Len(t, final.SupportingEvidence, 1+refiners, "no refinement may be lost")
	assert.InDelta(t, 0.5+0.05*refiners, final.Confidence, 1e-9)
	assert.EqualValues(t, 1+refiners, final.Revision)
}
