// Package rag is the document retrieval store: user documents are split into
// overlapping chunks, embedded, and recalled by similarity to enrich the
// composer's context.
package rag

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arialabs/aria/internal/embedding"
	"github.com/arialabs/aria/internal/vectorstore"
)

const collection = "documents"

// Store indexes and retrieves per-user document chunks.
type Store struct {
	embedder embedding.Provider
	vectors  *vectorstore.Client
	logger   *zap.Logger
}

// NewStore creates a document store over the given embedder and vector client.
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
		return fmt.Errorf("init document collection: %w", err)
	}
	return nil
}

// AddChunks indexes a document's chunks for the user, replacing any chunks
// from a previous indexing of the same document.
func (s *Store) AddChunks(ctx context.Context, userID, docID string, chunks []string) error {
	if len(chunks) == 0 {
		return nil
	}

	// Re-indexing a document drops its old chunks first.
	if err := s.vectors.DeleteByFilter(ctx, collection, map[string]string{
		"user_id": userID,
		"doc_id":  docID,
	}); err != nil {
		s.logger.Warn("failed to drop stale chunks", zap.String("doc", docID), zap.Error(err))
	}

	vecs, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vecs))
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for i, chunk := range chunks {
		payload := map[string]string{
			"user_id":    userID,
			"doc_id":     docID,
			"chunk_idx":  strconv.Itoa(i),
			"content":    chunk,
			"indexed_at": now,
		}
		if err := s.vectors.Upsert(ctx, collection, uuid.New().String(), vecs[i], payload); err != nil {
			return fmt.Errorf("index chunk %d of %s: %w", i, docID, err)
		}
	}
	s.logger.Info("document indexed",
		zap.String("user", userID), zap.String("doc", docID), zap.Int("chunks", len(chunks)))
	return nil
}

// Retrieve returns up to k chunk texts relevant to the query for the user.
func (s *Store) Retrieve(ctx context.Context, userID, query string, k int) ([]string, error) {
	if k <= 0 {
		k = 5
	}
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, nil
	}

	hits, err := s.vectors.Search(ctx, collection, vecs[0], uint64(k),
		map[string]string{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Payload["content"])
	}
	return out, nil
}
