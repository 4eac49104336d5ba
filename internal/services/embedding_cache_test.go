package services

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentmatch/matching-engine/internal/models"
)

type fakeEmbeddingRepo struct {
	records map[string]*models.EmbeddingRecord
}

func newFakeEmbeddingRepo() *fakeEmbeddingRepo {
	return &fakeEmbeddingRepo{records: make(map[string]*models.EmbeddingRecord)}
}

func (r *fakeEmbeddingRepo) key(entityType models.EntityType, entityID uuid.UUID) string {
	return string(entityType) + ":" + entityID.String()
}

func (r *fakeEmbeddingRepo) FindByEntity(entityType models.EntityType, entityID uuid.UUID) (*models.EmbeddingRecord, error) {
	record, ok := r.records[r.key(entityType, entityID)]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (r *fakeEmbeddingRepo) Upsert(record *models.EmbeddingRecord) error {
	copied := *record
	r.records[r.key(record.EntityType, record.EntityID)] = &copied
	return nil
}

func (r *fakeEmbeddingRepo) DeleteByEntity(entityType models.EntityType, entityID uuid.UUID) error {
	delete(r.records, r.key(entityType, entityID))
	return nil
}

type fakeGenerator struct {
	calls int
	fail  bool
}

func (g *fakeGenerator) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	g.calls++
	if g.fail {
		return nil, fmt.Errorf("%w: synthetic failure", ErrEmbeddingUnavailable)
	}
	// Deterministic per-text vector so tests can reason about the combination.
	vec := make([]float32, 4)
	for i, r := range text {
		vec[i%4] += float32(r)
	}
	return vec, nil
}

func (g *fakeGenerator) ModelID() string { return "fake-embedding-001" }
func (g *fakeGenerator) Dimensions() int { return 4 }

type fakeVectorStore struct {
	upserts int
	deletes int
	last    map[string][]float32
}

func (s *fakeVectorStore) InitCollection() error { return nil }

func (s *fakeVectorStore) UpsertEntity(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, vectors map[string][]float32) error {
	s.upserts++
	s.last = vectors
	return nil
}

func (s *fakeVectorStore) FindCandidates(ctx context.Context, queryVector []float32, limit int, minSimilarity float64) ([]CandidateSimilarity, error) {
	return nil, nil
}

func (s *fakeVectorStore) DeleteEntity(ctx context.Context, entityType models.EntityType, entityID uuid.UUID) error {
	s.deletes++
	return nil
}

func defaultVectorWeights() map[string]float64 {
	return map[string]float64{
		models.VectorFullText:   0.3,
		models.VectorSkills:     0.4,
		models.VectorExperience: 0.3,
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash(map[string]string{"skills": "Go, Python", "full_text": "profile"})
	b := ContentHash(map[string]string{"full_text": "profile", "skills": "Go, Python"})
	c := ContentHash(map[string]string{"full_text": "profile", "skills": "Go"})

	assert.Equal(t, a, b, "hash must not depend on map iteration order")
	assert.NotEqual(t, a, c)
	// Name/value boundaries must not be ambiguous.
	assert.NotEqual(t,
		ContentHash(map[string]string{"ab": "c"}),
		ContentHash(map[string]string{"a": "bc"}),
	)
}

func TestGetOrComputeCachesByContentHash(t *testing.T) {
	repo := newFakeEmbeddingRepo()
	gen := &fakeGenerator{}
	store := &fakeVectorStore{}
	cache := NewEmbeddingCacheService(repo, gen, store, defaultVectorWeights())

	entityID := uuid.New()
	sources := map[string]string{
		"full_text":  "senior backend engineer",
		"skills":     "Go, Python",
		"experience": "8 years building services",
	}

	first, err := cache.GetOrCompute(context.Background(), models.EntityCandidate, entityID, sources)
	require.NoError(t, err)
	assert.Equal(t, 3, gen.calls, "one generator call per non-empty source")
	assert.Equal(t, 1, store.upserts)
	assert.NotNil(t, first.Combined())
	assert.Equal(t, "fake-embedding-001", first.ModelID)

	// Unchanged content: no recompute, no new upsert.
	second, err := cache.GetOrCompute(context.Background(), models.EntityCandidate, entityID, sources)
	require.NoError(t, err)
	assert.Equal(t, 3, gen.calls)
	assert.Equal(t, 1, store.upserts)
	assert.Equal(t, first.ContentHash, second.ContentHash)

	// Changed content: full recompute.
	sources["skills"] = "Go, Python, Rust"
	third, err := cache.GetOrCompute(context.Background(), models.EntityCandidate, entityID, sources)
	require.NoError(t, err)
	assert.Equal(t, 6, gen.calls)
	assert.Equal(t, 2, store.upserts)
	assert.NotEqual(t, first.ContentHash, third.ContentHash)
}

func TestGetOrComputeSkipsEmptySources(t *testing.T) {
	repo := newFakeEmbeddingRepo()
	gen := &fakeGenerator{}
	cache := NewEmbeddingCacheService(repo, gen, &fakeVectorStore{}, defaultVectorWeights())

	record, err := cache.GetOrCompute(context.Background(), models.EntityJob, uuid.New(), map[string]string{
		"full_text":  "platform engineer role",
		"skills":     "",
		"experience": "",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, record.Vectors, models.VectorFullText)
	assert.NotContains(t, record.Vectors, models.VectorSkills)
	assert.Contains(t, record.Vectors, models.VectorCombined)
}

func TestGetOrComputeAllEmptySourcesErrors(t *testing.T) {
	cache := NewEmbeddingCacheService(newFakeEmbeddingRepo(), &fakeGenerator{}, &fakeVectorStore{}, defaultVectorWeights())

	_, err := cache.GetOrCompute(context.Background(), models.EntityJob, uuid.New(), map[string]string{
		"full_text": "",
	})

	assert.Error(t, err)
}

func TestGetOrComputeWrapsGeneratorFailure(t *testing.T) {
	cache := NewEmbeddingCacheService(newFakeEmbeddingRepo(), &fakeGenerator{fail: true}, &fakeVectorStore{}, defaultVectorWeights())

	_, err := cache.GetOrCompute(context.Background(), models.EntityCandidate, uuid.New(), map[string]string{
		"skills": "Go",
	})

	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestCombinedVectorIsUnitLength(t *testing.T) {
	repo := newFakeEmbeddingRepo()
	cache := NewEmbeddingCacheService(repo, &fakeGenerator{}, &fakeVectorStore{}, defaultVectorWeights())

	record, err := cache.GetOrCompute(context.Background(), models.EntityCandidate, uuid.New(), map[string]string{
		"full_text":  "abc",
		"skills":     "xyz",
		"experience": "mno",
	})
	require.NoError(t, err)

	var norm float64
	for _, v := range record.Combined() {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestCombinedVectorRenormalizesMissingWeights(t *testing.T) {
	// Only the skills source is present; its 0.4 weight renormalizes to 1 so
	// the combined vector is just the normalized skills vector.
	gen := &fakeGenerator{}
	cache := NewEmbeddingCacheService(newFakeEmbeddingRepo(), gen, &fakeVectorStore{}, defaultVectorWeights())

	record, err := cache.GetOrCompute(context.Background(), models.EntityCandidate, uuid.New(), map[string]string{
		"skills": "Go",
	})
	require.NoError(t, err)

	skills := record.Vectors[models.VectorSkills]
	combined := record.Combined()
	require.Len(t, combined, 4)

	var skillsNorm float64
	for _, v := range skills {
		skillsNorm += float64(v) * float64(v)
	}
	scale := 1 / math.Sqrt(skillsNorm)
	for i := range combined {
		assert.InDelta(t, float64(skills[i])*scale, float64(combined[i]), 1e-5)
	}
}

func TestInvalidateRemovesRecordAndVectors(t *testing.T) {
	repo := newFakeEmbeddingRepo()
	gen := &fakeGenerator{}
	store := &fakeVectorStore{}
	cache := NewEmbeddingCacheService(repo, gen, store, defaultVectorWeights())

	entityID := uuid.New()
	sources := map[string]string{"skills": "Go"}

	_, err := cache.GetOrCompute(context.Background(), models.EntityCandidate, entityID, sources)
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate(context.Background(), models.EntityCandidate, entityID))
	assert.Equal(t, 1, store.deletes)

	// The next read recomputes from scratch.
	_, err = cache.GetOrCompute(context.Background(), models.EntityCandidate, entityID, sources)
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls)
}
