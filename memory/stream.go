package memory

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/pensionlab/guidancecore/config"
	"github.com/pensionlab/guidancecore/embedding"
	"github.com/pensionlab/guidancecore/errors"
	"github.com/pensionlab/guidancecore/internal/vecmath"
	"github.com/pensionlab/guidancecore/vectorstore"
	"github.com/samber/lo"
)

type (
	// Weights control the retrieval score blend. They need not sum to 1.
	Weights struct {
		Recency    float64
		Importance float64
		Relevance  float64
	}

	// Stream holds one agent's nodes in conversation order and answers
	// relevance-ranked retrieval. An optional repository makes every Add
	// a synchronous write-through.
	Stream struct {
		conf     *config.MemoryConfig
		logger   *slog.Logger
		embedder embedding.Embedder
		scorer   Scorer
		repo     vectorstore.Store[*Node]

		mu    sync.Mutex
		nodes []*Node
	}

	StreamOption func(*Stream)
)

// WithRepository attaches a durable write-through backend.
func WithRepository(repo vectorstore.Store[*Node]) StreamOption {
	return func(s *Stream) { s.repo = repo }
}

// WithScorer sets the importance rater used by Perceive.
func WithScorer(scorer Scorer) StreamOption {
	return func(s *Stream) { s.scorer = scorer }
}

// WithEmbedder sets the embedder used by Perceive.
func WithEmbedder(embedder embedding.Embedder) StreamOption {
	return func(s *Stream) { s.embedder = embedder }
}

func NewStream(conf *config.MemoryConfig, logger *slog.Logger, opts ...StreamOption) *Stream {
	s := &Stream{
		conf:   conf,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultWeights returns the configured weight blend.
func (s *Stream) DefaultWeights() Weights {
	return Weights{
		Recency:    s.conf.RecencyWeight,
		Importance: s.conf.ImportanceWeight,
		Relevance:  s.conf.RelevanceWeight,
	}
}

// Perceive rates, embeds, and stores a new node from raw text. A failed
// importance rating degrades to a neutral score rather than failing node
// creation; a failed embedding is fatal for the node.
func (s *Stream) Perceive(ctx context.Context, text string, memoryType Type) (*Node, error) {
	if s.embedder == nil {
		return nil, errors.New("stream has no embedder configured")
	}

	embeddings, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	importance := 0.5
	if s.scorer != nil {
		score, err := s.scorer.RateImportance(ctx, text)
		if err != nil {
			s.logger.Warn("importance rating failed, using neutral score",
				slog.Any("error", err))
		} else {
			if score < 0 || score > 1 {
				s.logger.Warn("importance score out of range, clamping",
					slog.Float64("score", score))
			}
			importance = vecmath.Clamp01(score)
		}
	}

	now := time.Now()
	node := &Node{
		Description:  text,
		Timestamp:    now,
		LastAccessed: now,
		Importance:   importance,
		MemoryType:   memoryType,
		Embedding:    embeddings[0],
	}
	if err := s.Add(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}

// Add appends a node, persisting first when a repository is attached so
// process memory never diverges from durable state.
func (s *Stream) Add(ctx context.Context, node *Node) error {
	if node == nil {
		return errors.Wrap(errors.ErrInvalidArgument, "node is nil")
	}
	if node.Description == "" {
		return errors.Wrap(errors.ErrInvalidArgument, "node description is empty")
	}
	if len(node.Embedding) == 0 {
		return errors.Wrap(errors.ErrInvalidArgument, "node has no embedding")
	}
	if node.Importance < 0 || node.Importance > 1 {
		return errors.Wrapf(errors.ErrInvalidArgument, "importance %f out of [0,1]", node.Importance)
	}

	if node.Timestamp.IsZero() {
		node.Timestamp = time.Now()
	}
	if node.LastAccessed.IsZero() {
		node.LastAccessed = node.Timestamp
	}

	if s.repo != nil {
		if _, err := s.repo.Add(ctx, node); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.nodes = append(s.nodes, node)
	s.mu.Unlock()
	return nil
}

// Retrieve ranks every node by the weighted blend of recency (exponential
// decay on hours since last access), importance, and relevance (rescaled
// cosine similarity), then returns the top k. The returned nodes are
// touched: LastAccessed moves to now and AccessCount increments, because
// recency reflects usage, not just creation.
func (s *Stream) Retrieve(ctx context.Context, queryEmbedding []float32, topK int, now time.Time, weights Weights) ([]*Node, error) {
	if topK <= 0 {
		return []*Node{}, nil
	}
	if len(queryEmbedding) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidArgument, "query embedding is empty")
	}

	s.mu.Lock()

	if len(s.nodes) == 0 {
		s.mu.Unlock()
		return []*Node{}, nil
	}
	if len(s.nodes[0].Embedding) != len(queryEmbedding) {
		s.mu.Unlock()
		return nil, errors.Wrapf(errors.ErrInvalidArgument, "query has %d dimensions, nodes have %d", len(queryEmbedding), len(s.nodes[0].Embedding))
	}

	embeddings := lo.Map(s.nodes, func(node *Node, _ int) []float32 {
		return node.Embedding
	})
	similarities := vecmath.CosineAll(queryEmbedding, embeddings)

	type scored struct {
		node  *Node
		total float64
	}
	candidates := make([]scored, len(s.nodes))
	for i, node := range s.nodes {
		recency := math.Pow(s.conf.DecayFactor, now.Sub(node.LastAccessed).Hours())
		relevance := vecmath.Rescale(similarities[i])
		total := weights.Recency*recency +
			weights.Importance*node.Importance +
			weights.Relevance*relevance
		candidates[i] = scored{node: node, total: total}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].total > candidates[j].total
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}

	results := make([]*Node, topK)
	for i := 0; i < topK; i++ {
		node := candidates[i].node
		node.LastAccessed = now
		node.AccessCount++
		results[i] = node
	}
	s.mu.Unlock()

	// Touch persistence is best effort: a failed update degrades scoring
	// slightly but must not fail the read path. The lock is released
	// first; no lock is held across storage I/O.
	if s.repo != nil {
		for _, node := range results {
			if err := s.repo.Update(ctx, node); err != nil {
				s.logger.Warn("failed to persist retrieval touch",
					slog.String("node", node.ID), slog.Any("error", err))
			}
		}
	}

	return results, nil
}

// Len reports the number of nodes in the stream.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}
