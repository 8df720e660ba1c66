package guidancecore_test

import (
	"context"
	"testing"

	"github.com/pensionlab/guidancecore"
	"github.com/pensionlab/guidancecore/config"
	"github.com/pensionlab/guidancecore/memory"
	"github.com/pensionlab/guidancecore/reflection"
	"github.com/pensionlab/guidancecore/retriever"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	vector []float32
}

func (e *stubEmbedder) Embed(ctx context.Context, texts ...string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vector
	}
	return out, nil
}

func (e *stubEmbedder) Dimension() int { return len(e.vector) }

type stubScorer struct{ score float64 }

func (s *stubScorer) RateImportance(ctx context.Context, text string) (float64, error) {
	return s.score, nil
}

type stubAnalyzer struct{}

func (a *stubAnalyzer) AnalyzeFailure(ctx context.Context, transcript, failureSignal string) (*reflection.Analysis, error) {
	return &reflection.Analysis{
		RootCause: "advice boundary crossed",
		Principle: "signpost regulated advice instead of recommending products",
		Domain:    "db_transfer",
		Certainty: 0.8,
		Evidence:  "transcript snippet",
	}, nil
}

func newTestRuntime(t *testing.T) *guidancecore.Runtime {
	t.Helper()

	modelConf := config.NewModelConfig()
	modelConf.EmbeddingDimension = 3

	runtime, err := guidancecore.NewRuntime(t.Context(),
		guidancecore.WithModelConfig(modelConf),
		guidancecore.WithStoreConfig(&config.StoreConfig{SqliteEnabled: false}),
		guidancecore.WithEmbedder(&stubEmbedder{vector: []float32{1, 0, 0}}),
		guidancecore.WithScorer(&stubScorer{score: 0.7}),
		guidancecore.WithAnalyzer(&stubAnalyzer{}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = runtime.Close() })
	return runtime
}

func TestRuntime_PerceiveAndRetrieve(t *testing.T) {
	runtime := newTestRuntime(t)
	ctx := t.Context()

	node, err := runtime.Perceive(ctx, "customer wants to consolidate three old workplace pots", memory.TypeObservation)
	require.NoError(t, err)
	assert.Equal(t, 0.7, node.Importance)

	bundle, err := runtime.RetrieveContext(ctx, "pension consolidation", retriever.Hints{})
	require.NoError(t, err)
	require.Len(t, bundle.Memories, 1)
	assert.Equal(t, node.ID, bundle.Memories[0].ID)
	assert.Empty(t, bundle.Degraded)
}

func TestRuntime_ConsultationLearningRoundTrip(t *testing.T) {
	runtime := newTestRuntime(t)
	ctx := t.Context()

	report := runtime.ProcessConsultation(ctx, &reflection.Consultation{
		ID:                "consult-1",
		TaskType:          "db_transfer",
		Domain:            "db_transfer",
		CustomerSituation: "deferred DB member weighing a transfer offer",
		GuidanceProvided:  "recommended a specific fund",
		Transcript:        "transcript",
		CompliancePassed:  false,
		ComplianceNotes:   "product recommendation detected",
		QualityScore:      0.5,
	})
	require.Equal(t, reflection.StateLearningFailure, report.State)
	require.NotEmpty(t, report.RuleID)

	// The learned rule is retrievable on the next consultation.
	bundle, err := runtime.RetrieveContext(ctx, "customer asking about DB transfer", retriever.Hints{Domain: "db_transfer"})
	require.NoError(t, err)
	require.Len(t, bundle.Rules, 1)
	assert.Equal(t, report.RuleID, bundle.Rules[0].Rule.ID)
}

func TestRuntime_IndexKnowledgeFromMaps(t *testing.T) {
	runtime := newTestRuntime(t)
	ctx := t.Context()

	err := runtime.IndexKnowledgeFromMaps(ctx, []map[string]any{
		{"title": "Tax-free cash", "content": "Up to 25% of the pot can usually be taken tax free."},
	})
	require.NoError(t, err)

	count, err := runtime.KnowledgeService().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestRuntime_RecordConsultationOutcome_CompletesBeforeClose(t *testing.T) {
	runtime := newTestRuntime(t)

	runtime.RecordConsultationOutcome(&reflection.Consultation{
		ID:                "consult-async",
		TaskType:          "drawdown",
		Domain:            "drawdown",
		CustomerSituation: "situation",
		GuidanceProvided:  "guidance",
		Transcript:        "transcript",
		CompliancePassed:  true,
		QualityScore:      0.9,
	})

	// Close waits for the detached learning run.
	require.NoError(t, runtime.Close())

	count, err := runtime.CaseBase().Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
