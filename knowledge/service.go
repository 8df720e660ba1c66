package knowledge

import (
	"context"
	"log/slog"
	"time"

	"github.com/mokiat/gog"
	"github.com/pensionlab/guidancecore/config"
	"github.com/pensionlab/guidancecore/embedding"
	"github.com/pensionlab/guidancecore/errors"
	"github.com/pensionlab/guidancecore/vectorstore"
)

type Service struct {
	store    vectorstore.Store[*Item]
	embedder embedding.Embedder
	conf     *config.KnowledgeConfig
	logger   *slog.Logger
}

func NewService(store vectorstore.Store[*Item], embedder embedding.Embedder, conf *config.KnowledgeConfig, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		embedder: embedder,
		conf:     conf,
		logger:   logger,
	}
}

// Index embeds and stores the given items. Either every item is given an
// embedding or the whole batch fails; partial indexes are worse than none.
func (s *Service) Index(ctx context.Context, items []*Item) error {
	if len(items) == 0 {
		return nil
	}

	started := time.Now()
	embeddings, err := s.embedder.Embed(ctx, gog.Map(items, func(item *Item) string {
		return item.Content
	})...)
	if err != nil {
		return errors.Wrapf(err, "failed to embed knowledge items")
	}
	if len(embeddings) != len(items) {
		return errors.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(items))
	}
	s.logger.Info("generated knowledge embeddings",
		slog.Int("items", len(items)), slog.Duration("took", time.Since(started)))

	now := time.Now()
	for i, item := range items {
		item.Embedding = embeddings[i]
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		if _, err := s.store.Add(ctx, item); err != nil {
			return errors.Wrapf(err, "failed to store knowledge item %d", i)
		}
	}
	return nil
}

// Search returns the most similar indexed items.
func (s *Service) Search(ctx context.Context, queryEmbedding []float32, limit int) ([]vectorstore.Scored[*Item], error) {
	return s.store.Search(ctx, queryEmbedding, limit, nil)
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}
