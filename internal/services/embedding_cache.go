package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"talentmatch/matching-engine/internal/models"
	"talentmatch/matching-engine/internal/repositories"
)

// EmbeddingGenerator is the slice of the Gemini service the cache needs. Kept
// narrow so tests can count calls on a double.
type EmbeddingGenerator interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	ModelID() string
	Dimensions() int
}

type EmbeddingCacheService interface {
	// GetOrCompute returns the cached record when the content hash of sources
	// is unchanged, otherwise recomputes every named vector exactly once,
	// builds the weighted combined vector and upserts record + vector store.
	GetOrCompute(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, sources map[string]string) (*models.EmbeddingRecord, error)
	Invalidate(ctx context.Context, entityType models.EntityType, entityID uuid.UUID) error
}

const lockStripes = 64

type embeddingCacheService struct {
	embeddingRepo repositories.EmbeddingRepository
	generator     EmbeddingGenerator
	vectorStore   SimilarityService
	vectorWeights map[string]float64
	locks         [lockStripes]sync.Mutex
}

func NewEmbeddingCacheService(
	embeddingRepo repositories.EmbeddingRepository,
	generator EmbeddingGenerator,
	vectorStore SimilarityService,
	vectorWeights map[string]float64,
) EmbeddingCacheService {
	return &embeddingCacheService{
		embeddingRepo: embeddingRepo,
		generator:     generator,
		vectorStore:   vectorStore,
		vectorWeights: vectorWeights,
	}
}

// ContentHash computes a stable sha256 over the named source texts. Names are
// sorted so map iteration order cannot change the hash.
func ContentHash(sources map[string]string) string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(sources[name]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *embeddingCacheService) entityLock(entityType models.EntityType, entityID uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(entityType))
	h.Write(entityID[:])
	return &s.locks[h.Sum32()%lockStripes]
}

// GetOrCompute implements EmbeddingCacheService. The per-entity lock makes
// computation at-most-once per (entity, content hash) under concurrent
// callers: the second caller re-reads the row the first one wrote.
func (s *embeddingCacheService) GetOrCompute(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, sources map[string]string) (*models.EmbeddingRecord, error) {
	hash := ContentHash(sources)

	lock := s.entityLock(entityType, entityID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.embeddingRepo.FindByEntity(entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding cache: %w", err)
	}
	if existing != nil && existing.ContentHash == hash && existing.ModelID == s.generator.ModelID() {
		return existing, nil
	}

	log.Printf("🔄 Computing embeddings for %s %s\n", entityType, entityID)

	vectors := make(models.VectorMap, len(sources)+1)

	// Sorted for a deterministic call order, one generator call per named
	// vector. Empty sources produce no vector rather than an API call.
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		text := sources[name]
		if text == "" {
			continue
		}
		vec, err := s.generator.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed %q vector: %w", name, err)
		}
		vectors[name] = vec
	}

	if len(vectors) == 0 {
		return nil, fmt.Errorf("no non-empty source texts for %s %s", entityType, entityID)
	}

	vectors[models.VectorCombined] = s.combineVectors(vectors)

	record := &models.EmbeddingRecord{
		EntityType:  entityType,
		EntityID:    entityID,
		ContentHash: hash,
		ModelID:     s.generator.ModelID(),
		Dimensions:  s.generator.Dimensions(),
		Vectors:     vectors,
	}
	if existing != nil {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	}

	if err := s.embeddingRepo.Upsert(record); err != nil {
		return nil, fmt.Errorf("failed to persist embedding record: %w", err)
	}

	if err := s.vectorStore.UpsertEntity(ctx, entityType, entityID, vectors); err != nil {
		return nil, fmt.Errorf("failed to upsert vectors: %w", err)
	}

	return record, nil
}

// combineVectors builds the weighted combined vector over whichever named
// vectors exist. Weights are renormalized over the present vectors and the
// result is L2-normalized so cosine scores stay comparable.
func (s *embeddingCacheService) combineVectors(vectors models.VectorMap) []float32 {
	dims := s.generator.Dimensions()
	combined := make([]float32, dims)

	var totalWeight float64
	for name := range vectors {
		if w, ok := s.vectorWeights[name]; ok {
			totalWeight += w
		}
	}
	if totalWeight == 0 {
		totalWeight = 1
	}

	for name, vec := range vectors {
		w, ok := s.vectorWeights[name]
		if !ok {
			continue
		}
		scale := float32(w / totalWeight)
		for i := 0; i < dims && i < len(vec); i++ {
			combined[i] += vec[i] * scale
		}
	}

	var norm float64
	for _, v := range combined {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range combined {
			combined[i] *= inv
		}
	}

	return combined
}

// Invalidate implements EmbeddingCacheService: drops the cached record and the
// stored vectors, used when the entity is deleted.
func (s *embeddingCacheService) Invalidate(ctx context.Context, entityType models.EntityType, entityID uuid.UUID) error {
	lock := s.entityLock(entityType, entityID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.embeddingRepo.DeleteByEntity(entityType, entityID); err != nil {
		return err
	}
	return s.vectorStore.DeleteEntity(ctx, entityType, entityID)
}
