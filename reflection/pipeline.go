// Package reflection converts consultation outcomes into reusable cases
// and rules. Learning is best effort: the pipeline logs and degrades on
// failure, and never blocks or breaks the consultation-serving path.
package reflection

import (
	"context"
	"log/slog"

	"github.com/pensionlab/guidancecore/casebase"
	"github.com/pensionlab/guidancecore/config"
	"github.com/pensionlab/guidancecore/embedding"
	"github.com/pensionlab/guidancecore/errors"
	"github.com/pensionlab/guidancecore/internal/vecmath"
	"github.com/pensionlab/guidancecore/rulebase"
)

type (
	// State names a node in the learning state machine.
	State string

	// Consultation is the terminal record of one customer session, as
	// assembled by the orchestration layer.
	Consultation struct {
		ID                string
		TaskType          string
		Domain            string
		CustomerSituation string
		GuidanceProvided  string
		Transcript        string
		Phase             string
		Techniques        []string

		CompliancePassed  bool
		ComplianceNotes   string
		QualityScore      float64
		SatisfactionScore float64
	}

	// Report describes what one pipeline run did.
	Report struct {
		ConsultationID string
		State          State
		CaseID         string
		RuleID         string
		RuleRefined    bool
		Skipped        string
	}

	Pipeline struct {
		cases    *casebase.CaseBase
		rules    *rulebase.RuleBase
		embedder embedding.Embedder
		analyzer Analyzer
		conf     *config.LearningConfig
		logger   *slog.Logger
	}
)

const (
	StateEvaluating      State = "EVALUATING"
	StateLearningSuccess State = "LEARNING_SUCCESS"
	StateLearningFailure State = "LEARNING_FAILURE"
	StateNoLearning      State = "NO_LEARNING"
)

func NewPipeline(
	cases *casebase.CaseBase,
	rules *rulebase.RuleBase,
	embedder embedding.Embedder,
	analyzer Analyzer,
	conf *config.LearningConfig,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		cases:    cases,
		rules:    rules,
		embedder: embedder,
		analyzer: analyzer,
		conf:     conf,
		logger:   logger,
	}
}

// Process runs the state machine once for a finished consultation. Every
// transition is one-shot; internal failures degrade to NO_LEARNING. The
// returned report is informational only.
func (p *Pipeline) Process(ctx context.Context, c *Consultation) *Report {
	report := &Report{ConsultationID: c.ID, State: StateEvaluating}

	switch p.evaluate(c) {
	case StateLearningSuccess:
		p.learnSuccess(ctx, c, report)
	case StateLearningFailure:
		p.learnFailure(ctx, c, report)
	default:
		report.State = StateNoLearning
		report.Skipped = "outcome between failure and success thresholds"
	}

	return report
}

// evaluate applies the outcome thresholds: compliant and high quality
// learns a case; non-compliant or low quality learns a rule; the band in
// between learns nothing.
func (p *Pipeline) evaluate(c *Consultation) State {
	if c.CompliancePassed && c.QualityScore >= p.conf.SuccessQualityThreshold {
		return StateLearningSuccess
	}
	if !c.CompliancePassed || c.QualityScore <= p.conf.FailureQualityThreshold {
		return StateLearningFailure
	}
	return StateNoLearning
}

func (p *Pipeline) learnSuccess(ctx context.Context, c *Consultation, report *Report) {
	report.State = StateLearningSuccess

	newCase := &casebase.Case{
		TaskType:          c.TaskType,
		CustomerSituation: c.CustomerSituation,
		GuidanceProvided:  c.GuidanceProvided,
		Outcome: casebase.Outcome{
			CompliancePassed:  c.CompliancePassed,
			QualityScore:      c.QualityScore,
			SatisfactionScore: c.SatisfactionScore,
		},
	}
	if c.Phase != "" || len(c.Techniques) > 0 {
		newCase.DialogueTechniques = &casebase.DialogueTechniques{
			Phase:        c.Phase,
			Techniques:   c.Techniques,
			QualityScore: c.QualityScore,
		}
	}

	embeddings, err := p.embedder.Embed(ctx, newCase.EmbeddingText())
	if err != nil {
		p.degrade(report, "failed to embed case", err)
		return
	}
	newCase.Embedding = embeddings[0]

	// Near-duplicates are skipped to avoid case-base bloat. Not an
	// error: the episode is already represented.
	duplicate, err := p.cases.FindNearDuplicate(ctx, newCase.Embedding, p.conf.CaseDedupSimilarity)
	if err != nil {
		p.degrade(report, "failed to check for duplicate case", err)
		return
	}
	if duplicate != nil {
		report.Skipped = "near-duplicate of case " + duplicate.ID
		p.logger.Info("skipping near-duplicate case",
			slog.String("consultation", c.ID), slog.String("existing", duplicate.ID))
		return
	}

	persisted, err := p.cases.Add(ctx, newCase)
	if err != nil {
		p.degrade(report, "failed to persist case", err)
		return
	}
	report.CaseID = persisted.ID
	p.logger.Info("learned case from consultation",
		slog.String("consultation", c.ID), slog.String("case", persisted.ID))
}

func (p *Pipeline) learnFailure(ctx context.Context, c *Consultation, report *Report) {
	report.State = StateLearningFailure

	failureSignal := "quality score below threshold"
	if !c.CompliancePassed {
		failureSignal = "compliance validation failed: " + c.ComplianceNotes
	}

	analysisCtx, cancel := context.WithTimeout(ctx, p.conf.AnalysisTimeout)
	defer cancel()

	analysis, err := p.analyzer.AnalyzeFailure(analysisCtx, c.Transcript, failureSignal)
	if err != nil {
		p.degrade(report, "root-cause analysis failed", err)
		return
	}

	embeddings, err := p.embedder.Embed(ctx, analysis.Principle)
	if err != nil {
		p.degrade(report, "failed to embed principle", err)
		return
	}
	principleEmbedding := embeddings[0]

	domain := analysis.Domain
	if domain == "" {
		domain = c.Domain
	}

	evidence := rulebase.Evidence{
		Source:   c.ID,
		Snippet:  analysis.Evidence,
		Supports: true,
	}

	existing, err := p.rules.FindSimilar(ctx, principleEmbedding, domain, p.conf.RuleMergeSimilarity)
	if err != nil {
		p.degrade(report, "failed to search for similar rule", err)
		return
	}

	if existing != nil {
		if err := p.refineWithRetry(ctx, existing, evidence); err != nil {
			p.degrade(report, "failed to refine rule", err)
			return
		}
		report.RuleID = existing.ID
		report.RuleRefined = true
		p.logger.Info("refined rule from consultation",
			slog.String("consultation", c.ID), slog.String("rule", existing.ID),
			slog.Float64("confidence", existing.Confidence))
		return
	}

	rule := &rulebase.Rule{
		Principle:          analysis.Principle,
		Domain:             domain,
		Confidence:         p.initialConfidence(analysis),
		SupportingEvidence: []rulebase.Evidence{evidence},
		Embedding:          principleEmbedding,
	}
	persisted, err := p.rules.Add(ctx, rule)
	if err != nil {
		p.degrade(report, "failed to persist rule", err)
		return
	}
	report.RuleID = persisted.ID
	p.logger.Info("learned rule from consultation",
		slog.String("consultation", c.ID), slog.String("rule", persisted.ID))
}

// refineWithRetry retries a lost optimistic-concurrency race once with
// fresh data; a second loss gives up.
func (p *Pipeline) refineWithRetry(ctx context.Context, rule *rulebase.Rule, ev rulebase.Evidence) error {
	err := p.rules.Refine(ctx, rule, ev, p.conf.EvidenceWeight)
	if err == nil || !errors.Is(err, errors.ErrConflict) {
		return err
	}

	fresh, err := p.rules.Get(ctx, rule.ID)
	if err != nil {
		return err
	}
	*rule = *fresh
	return p.rules.Refine(ctx, rule, ev, p.conf.EvidenceWeight)
}

func (p *Pipeline) initialConfidence(analysis *Analysis) float64 {
	if analysis.Certainty > 0 {
		return vecmath.Clamp01(analysis.Certainty)
	}
	return p.conf.InitialConfidence
}

// degrade downgrades the run to NO_LEARNING. Learning errors never
// propagate past the pipeline boundary.
func (p *Pipeline) degrade(report *Report, msg string, err error) {
	p.logger.Warn(msg,
		slog.String("consultation", report.ConsultationID), slog.Any("error", err))
	report.State = StateNoLearning
	report.Skipped = msg
}
