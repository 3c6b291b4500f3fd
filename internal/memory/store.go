// Package memory is the long-term memory store: durable user facts ranked by
// embedding similarity at recall time. Facts live in a Qdrant collection,
// one point per fact, filtered by user on retrieval.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arialabs/aria/internal/embedding"
	"github.com/arialabs/aria/internal/vectorstore"
)

const collection = "memories"

// Store persists and recalls long-term user facts.
type Store struct {
	embedder embedding.Provider
	vectors  *vectorstore.Client
	logger   *zap.Logger
}

// NewStore creates a memory store over the given embedder and vector client.
func NewStore(embedder embedding.Provider, vectors *vectorstore.Client, logger *zap.Logger) *Store {
	return &Store{embedder: embedder, vectors: vectors, logger: logger}
}

// Init ensures the backing collection exists.
func (s *Store) Init(ctx context.Context) error {
	dim := uint64(s.embedder.Dimension())
	if dim == 0 {
		dim = 1024
	}
	if err := s.vectors.EnsureCollection(ctx, collection, dim); err != nil {
		return fmt.Errorf("init memory collection: %w", err)
	}
	return nil
}

// Add stores one fact for the user. Weight biases recall ranking; 1.0 is
// neutral.
func (s *Store) Add(ctx context.Context, userID, text string, weight float64) error {
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("embed memory: %w", err)
	}
	if len(vecs) == 0 {
		return fmt.Errorf("empty embedding result")
	}

	payload := map[string]string{
		"user_id":    userID,
		"content":    text,
		"weight":     strconv.FormatFloat(weight, 'f', -1, 64),
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.vectors.Upsert(ctx, collection, uuid.New().String(), vecs[0], payload); err != nil {
		return fmt.Errorf("store memory: %w", err)
	}
	s.logger.Debug("memory stored", zap.String("user", userID))
	return nil
}

// Retrieve returns up to k facts for the user, most relevant to the query
// first. Similarity scores are scaled by each fact's weight before ranking.
func (s *Store) Retrieve(ctx context.Context, userID, query string, k int) ([]string, error) {
	if k <= 0 {
		k = 3
	}
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, nil
	}

	// Over-fetch so weight scaling can reorder beyond the raw top-k.
	hits, err := s.vectors.Search(ctx, collection, vecs[0], uint64(k*3),
		map[string]string{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}

	type scored struct {
		content string
		score   float64
	}
	ranked := make([]scored, 0, len(hits))
	for _, h := range hits {
		weight := 1.0
		if w, err := strconv.ParseFloat(h.Payload["weight"], 64); err == nil && w > 0 {
			weight = w
		}
		ranked = append(ranked, scored{
			content: h.Payload["content"],
			score:   float64(h.Score) * weight,
		})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.content
	}
	return out, nil
}
