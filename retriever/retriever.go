// Package retriever composes memory, case, rule, and knowledge lookups
// into one context bundle for prompt assembly.
package retriever

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/pensionlab/guidancecore/casebase"
	"github.com/pensionlab/guidancecore/config"
	"github.com/pensionlab/guidancecore/knowledge"
	"github.com/pensionlab/guidancecore/memory"
	"github.com/pensionlab/guidancecore/rulebase"
	"github.com/pensionlab/guidancecore/vectorstore"
)

type (
	// Phase is the detected stage of the consultation conversation.
	Phase string

	// Hints carry optional conversational context that shapes ranking
	// and filtering.
	Hints struct {
		Phase          Phase
		TaskType       string
		Domain         string
		EmotionalState string
		LiteracyLevel  string
	}

	// ContextBundle is the assembled retrieval result. A failed
	// sub-store leaves its category empty and listed in Degraded;
	// the bundle itself never fails.
	ContextBundle struct {
		Memories  []*memory.Node
		Cases     []casebase.ScoredCase
		Rules     []rulebase.ScoredRule
		Knowledge []vectorstore.Scored[*knowledge.Item]
		Degraded  []string
	}

	Retriever struct {
		stream    *memory.Stream
		cases     *casebase.CaseBase
		rules     *rulebase.RuleBase
		knowledge *knowledge.Service
		conf      *config.RetrievalConfig
		logger    *slog.Logger

		degradedCounter metric.Int64Counter
	}
)

const (
	PhaseOpening Phase = "opening"
	PhaseMiddle  Phase = "middle"
	PhaseClosing Phase = "closing"
)

func New(
	stream *memory.Stream,
	cases *casebase.CaseBase,
	rules *rulebase.RuleBase,
	knowledgeService *knowledge.Service,
	conf *config.RetrievalConfig,
	logger *slog.Logger,
) *Retriever {
	meter := otel.Meter("guidancecore/retriever")
	degradedCounter, err := meter.Int64Counter("retrieval.degraded",
		metric.WithDescription("sub-store queries that failed and were degraded to an empty category"))
	if err != nil {
		logger.Warn("failed to create degradation counter", slog.Any("error", err))
	}

	return &Retriever{
		stream:          stream,
		cases:           cases,
		rules:           rules,
		knowledge:       knowledgeService,
		conf:            conf,
		logger:          logger,
		degradedCounter: degradedCounter,
	}
}

// Retrieve queries all sub-stores concurrently; they are independent
// reads. Only the memory stream mutates state (its retrieval touch);
// cases, rules, and knowledge are read-only here.
func (r *Retriever) Retrieve(ctx context.Context, queryEmbedding []float32, hints Hints) (*ContextBundle, error) {
	bundle := &ContextBundle{}
	topK := r.conf.TopKPerCategory
	now := time.Now()

	var degraded []string
	record := func(category string, err error) {
		r.logger.Warn("sub-store query failed, degrading category",
			slog.String("category", category), slog.Any("error", err))
		if r.degradedCounter != nil {
			r.degradedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))
		}
		degraded = append(degraded, category)
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	degrade := func(category string, err error) {
		mu.Lock()
		record(category, err)
		mu.Unlock()
	}

	if r.stream != nil {
		g.Go(func() error {
			memories, err := r.stream.Retrieve(gctx, queryEmbedding, topK, now, r.stream.DefaultWeights())
			if err != nil {
				degrade("memories", err)
				return nil
			}
			bundle.Memories = memories
			return nil
		})
	}

	if r.cases != nil {
		g.Go(func() error {
			cases, err := r.cases.RetrieveSimilar(gctx, queryEmbedding, topK, hints.TaskType)
			if err != nil {
				degrade("cases", err)
				return nil
			}
			bundle.Cases = cases
			return nil
		})
	}

	if r.rules != nil {
		g.Go(func() error {
			rules, err := r.rules.RetrieveApplicable(gctx, queryEmbedding, topK, hints.Domain)
			if err != nil {
				degrade("rules", err)
				return nil
			}
			bundle.Rules = rules
			return nil
		})
	}

	if r.knowledge != nil {
		g.Go(func() error {
			items, err := r.knowledge.Search(gctx, queryEmbedding, topK)
			if err != nil {
				degrade("knowledge", err)
				return nil
			}
			bundle.Knowledge = items
			return nil
		})
	}

	_ = g.Wait()

	bundle.Degraded = degraded
	r.rerankCases(bundle, hints)
	return bundle, nil
}

// rerankCases boosts cases observed in the current conversation phase.
// Phase-matching exemplars beat raw similarity alone; memories and rules
// are left untouched.
func (r *Retriever) rerankCases(bundle *ContextBundle, hints Hints) {
	if hints.Phase == "" || len(bundle.Cases) == 0 {
		return
	}

	for i := range bundle.Cases {
		dt := bundle.Cases[i].Case.DialogueTechniques
		if dt != nil && dt.Phase == string(hints.Phase) {
			bundle.Cases[i].Score += r.conf.PhaseBoost
		}
	}

	sort.SliceStable(bundle.Cases, func(i, j int) bool {
		return bundle.Cases[i].Score > bundle.Cases[j].Score
	})
}
