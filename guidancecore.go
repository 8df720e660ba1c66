package guidancecore

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/pensionlab/guidancecore/casebase"
	"github.com/pensionlab/guidancecore/config"
	"github.com/pensionlab/guidancecore/embedding"
	"github.com/pensionlab/guidancecore/entity"
	"github.com/pensionlab/guidancecore/errors"
	"github.com/pensionlab/guidancecore/internal/mylog"
	"github.com/pensionlab/guidancecore/knowledge"
	"github.com/pensionlab/guidancecore/llm"
	"github.com/pensionlab/guidancecore/memory"
	"github.com/pensionlab/guidancecore/reflection"
	"github.com/pensionlab/guidancecore/retriever"
	"github.com/pensionlab/guidancecore/rulebase"
	"github.com/pensionlab/guidancecore/vectorstore"
)

type (
	// Runtime wires the memory stream, case base, rule base, knowledge
	// service, retriever, and learning pipeline behind one facade.
	Runtime struct {
		logger   *slog.Logger
		advisor  *entity.Advisor
		embedder embedding.Embedder
		scorer   memory.Scorer
		analyzer reflection.Analyzer

		stream           *memory.Stream
		caseBase         *casebase.CaseBase
		ruleBase         *rulebase.RuleBase
		knowledgeService *knowledge.Service
		retriever        *retriever.Retriever
		pipeline         *reflection.Pipeline

		stores []io.Closer

		modelConfig     *config.ModelConfig
		memoryConfig    *config.MemoryConfig
		retrievalConfig *config.RetrievalConfig
		learningConfig  *config.LearningConfig
		storeConfig     *config.StoreConfig
		knowledgeConfig *config.KnowledgeConfig
		logConfig       *config.LogConfig

		learning sync.WaitGroup
	}
	Option func(*Runtime)
)

func (r *Runtime) Advisor() *entity.Advisor {
	return r.advisor
}

func NewRuntime(ctx context.Context, optionFuncs ...Option) (*Runtime, error) {
	r := &Runtime{
		modelConfig:     config.NewModelConfig(),
		memoryConfig:    config.NewMemoryConfig(),
		retrievalConfig: config.NewRetrievalConfig(),
		learningConfig:  config.NewLearningConfig(),
		storeConfig:     config.NewStoreConfig(),
		knowledgeConfig: config.NewKnowledgeConfig(),
		logConfig:       config.NewLogConfig(),
	}
	for _, f := range optionFuncs {
		f(r)
	}

	if r.logger == nil {
		r.logger = mylog.NewLogger(r.logConfig.LogLevel, r.logConfig.LogHandler)
	}

	if r.advisor != nil {
		if r.advisor.GenerationModel != "" {
			r.modelConfig.GenerationModel = r.advisor.GenerationModel
		}
		if r.advisor.ScoringModel != "" {
			r.modelConfig.ScoringModel = r.advisor.ScoringModel
		}
		r.advisor.ApplyThresholds(r.learningConfig)
	}

	if r.embedder == nil {
		if r.modelConfig.OpenAIAPIKey == "" {
			return nil, errors.New("no embedder configured and OPENAI_API_KEY is empty")
		}
		r.embedder = embedding.NewOpenAIEmbedder(r.modelConfig)
	}

	if r.scorer == nil {
		client, err := llm.NewClient(r.modelConfig, r.modelConfig.ScoringModel)
		if err != nil {
			return nil, errors.Wrap(err, "failed to build scoring client")
		}
		r.scorer = memory.NewLLMScorer(client)
	}

	if r.analyzer == nil {
		client, err := llm.NewClient(r.modelConfig, r.modelConfig.GenerationModel)
		if err != nil {
			return nil, errors.Wrap(err, "failed to build analysis client")
		}
		r.analyzer = reflection.NewLLMAnalyzer(client)
	}

	memoryStore, caseStore, ruleStore, knowledgeStore, err := r.openStores()
	if err != nil {
		return nil, err
	}

	r.stream = memory.NewStream(r.memoryConfig, r.logger,
		memory.WithRepository(memoryStore),
		memory.WithScorer(r.scorer),
		memory.WithEmbedder(r.embedder),
	)
	r.caseBase = casebase.New(caseStore, r.retrievalConfig, r.logger)
	r.ruleBase = rulebase.New(ruleStore, r.logger)
	r.knowledgeService = knowledge.NewService(knowledgeStore, r.embedder, r.knowledgeConfig, r.logger)

	r.retriever = retriever.New(r.stream, r.caseBase, r.ruleBase, r.knowledgeService, r.retrievalConfig, r.logger)
	r.pipeline = reflection.NewPipeline(r.caseBase, r.ruleBase, r.embedder, r.analyzer, r.learningConfig, r.logger)

	if r.advisor != nil && len(r.advisor.Knowledge) > 0 {
		// A failed startup index is logged, not fatal: the runtime still
		// serves from memories, cases, and rules.
		items := knowledge.ItemsFromMaps(r.advisor.Knowledge)
		if err := r.knowledgeService.Index(ctx, items); err != nil {
			r.logger.Warn("failed to index advisor knowledge",
				slog.String("advisor", r.advisor.Name), slog.Any("error", err))
		}
	}

	return r, nil
}

// openStores builds the four entity stores, SQLite-backed when enabled
// and in-memory otherwise.
func (r *Runtime) openStores() (
	vectorstore.Store[*memory.Node],
	vectorstore.Store[*casebase.Case],
	vectorstore.Store[*rulebase.Rule],
	vectorstore.Store[*knowledge.Item],
	error,
) {
	dim := r.modelConfig.EmbeddingDimension

	if !r.storeConfig.SqliteEnabled {
		memoryStore := vectorstore.NewInMemoryStore[*memory.Node](dim)
		caseStore := vectorstore.NewInMemoryStore[*casebase.Case](dim)
		ruleStore := vectorstore.NewInMemoryStore[*rulebase.Rule](dim)
		knowledgeStore := vectorstore.NewInMemoryStore[*knowledge.Item](dim)
		r.stores = append(r.stores, memoryStore, caseStore, ruleStore, knowledgeStore)
		return memoryStore, caseStore, ruleStore, knowledgeStore, nil
	}

	db, err := vectorstore.OpenDB(r.storeConfig.SqlitePath)
	if err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "failed to open sqlite database")
	}

	memoryStore, err := vectorstore.NewSqliteStore(db, "memories", dim, func() *memory.Node { return &memory.Node{} })
	if err != nil {
		return nil, nil, nil, nil, err
	}
	caseStore, err := vectorstore.NewSqliteStore(db, "cases", dim, func() *casebase.Case { return &casebase.Case{} })
	if err != nil {
		return nil, nil, nil, nil, err
	}
	ruleStore, err := vectorstore.NewSqliteStore(db, "rules", dim, func() *rulebase.Rule { return &rulebase.Rule{} })
	if err != nil {
		return nil, nil, nil, nil, err
	}
	knowledgeStore, err := vectorstore.NewSqliteStore(db, "knowledge", dim, func() *knowledge.Item { return &knowledge.Item{} })
	if err != nil {
		return nil, nil, nil, nil, err
	}

	r.stores = append(r.stores, memoryStore, caseStore, ruleStore, knowledgeStore)
	return memoryStore, caseStore, ruleStore, knowledgeStore, nil
}

// Perceive records a new observation in the memory stream.
func (r *Runtime) Perceive(ctx context.Context, text string, memoryType memory.Type) (*memory.Node, error) {
	return r.stream.Perceive(ctx, text, memoryType)
}

// RetrieveContext embeds the query text and assembles the context bundle
// for prompt construction.
func (r *Runtime) RetrieveContext(ctx context.Context, queryText string, hints retriever.Hints) (*retriever.ContextBundle, error) {
	embeddings, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, errors.Wrap(err, "failed to embed query")
	}
	return r.retriever.Retrieve(ctx, embeddings[0], hints)
}

// ProcessConsultation runs the learning pipeline synchronously.
func (r *Runtime) ProcessConsultation(ctx context.Context, c *reflection.Consultation) *reflection.Report {
	return r.pipeline.Process(ctx, c)
}

// RecordConsultationOutcome runs the learning pipeline on its own
// goroutine so consultation-serving callers never wait on learning.
// Close waits for in-flight runs.
func (r *Runtime) RecordConsultationOutcome(c *reflection.Consultation) {
	r.learning.Add(1)
	go func() {
		defer r.learning.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.learningConfig.AnalysisTimeout*2)
		defer cancel()
		report := r.pipeline.Process(ctx, c)
		r.logger.Debug("learning pipeline finished",
			slog.String("consultation", c.ID), slog.String("state", string(report.State)))
	}()
}

// IndexKnowledgeFromMaps indexes structured advisor knowledge entries.
func (r *Runtime) IndexKnowledgeFromMaps(ctx context.Context, data []map[string]any) error {
	return r.knowledgeService.Index(ctx, knowledge.ItemsFromMaps(data))
}

// IndexKnowledgeFromPDF chunks and indexes a guidance document.
func (r *Runtime) IndexKnowledgeFromPDF(ctx context.Context, input io.Reader, filename string) error {
	items, err := knowledge.ItemsFromPDF(input, filename, r.knowledgeConfig.PDFChunkSize)
	if err != nil {
		return err
	}
	return r.knowledgeService.Index(ctx, items)
}

// IndexKnowledgeFromURL crawls and indexes a web page.
func (r *Runtime) IndexKnowledgeFromURL(ctx context.Context, url string) error {
	items, err := knowledge.ItemsFromURL(r.knowledgeConfig, url)
	if err != nil {
		return err
	}
	return r.knowledgeService.Index(ctx, items)
}

// IndexKnowledgeFromFeed indexes entries from a regulator news feed.
func (r *Runtime) IndexKnowledgeFromFeed(ctx context.Context, feedURL string) error {
	items, err := knowledge.ItemsFromFeed(ctx, feedURL)
	if err != nil {
		return err
	}
	return r.knowledgeService.Index(ctx, items)
}

func (r *Runtime) MemoryStream() *memory.Stream { return r.stream }

func (r *Runtime) CaseBase() *casebase.CaseBase { return r.caseBase }

func (r *Runtime) RuleBase() *rulebase.RuleBase { return r.ruleBase }

func (r *Runtime) KnowledgeService() *knowledge.Service { return r.knowledgeService }

// Close waits for in-flight learning runs and releases the stores.
func (r *Runtime) Close() error {
	r.learning.Wait()
	var firstErr error
	for _, store := range r.stores {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

func WithAdvisor(advisor entity.Advisor) Option {
	return func(r *Runtime) {
		r.advisor = &advisor
	}
}

func WithOpenAIAPIKey(apiKey string) Option {
	return func(r *Runtime) {
		r.modelConfig.OpenAIAPIKey = apiKey
	}
}

func WithAnthropicAPIKey(apiKey string) Option {
	return func(r *Runtime) {
		r.modelConfig.AnthropicAPIKey = apiKey
	}
}

func WithEmbedder(embedder embedding.Embedder) Option {
	return func(r *Runtime) {
		r.embedder = embedder
	}
}

func WithScorer(scorer memory.Scorer) Option {
	return func(r *Runtime) {
		r.scorer = scorer
	}
}

func WithAnalyzer(analyzer reflection.Analyzer) Option {
	return func(r *Runtime) {
		r.analyzer = analyzer
	}
}

func WithModelConfig(conf *config.ModelConfig) Option {
	return func(r *Runtime) {
		r.modelConfig = conf
	}
}

func WithMemoryConfig(conf *config.MemoryConfig) Option {
	return func(r *Runtime) {
		r.memoryConfig = conf
	}
}

func WithRetrievalConfig(conf *config.RetrievalConfig) Option {
	return func(r *Runtime) {
		r.retrievalConfig = conf
	}
}

func WithLearningConfig(conf *config.LearningConfig) Option {
	return func(r *Runtime) {
		r.learningConfig = conf
	}
}

func WithStoreConfig(conf *config.StoreConfig) Option {
	return func(r *Runtime) {
		r.storeConfig = conf
	}
}

func WithLogConfig(conf *config.LogConfig) Option {
	return func(r *Runtime) {
		r.logConfig = conf
	}
}
