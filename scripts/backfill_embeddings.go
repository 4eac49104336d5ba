package main

import (
	"context"
	"log"

	"talentmatch/matching-engine/internal/config"
	"talentmatch/matching-engine/internal/models"
	"talentmatch/matching-engine/internal/repositories"
	"talentmatch/matching-engine/internal/services"
)

// Warms the embedding cache and vector store for every stored candidate and
// job. Entities whose content hash is unchanged are skipped by the cache.
func main() {
	log.Println("🚀 Starting embedding backfill...")

	// Load configuration
	cfg := config.Load()

	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	geminiService, err := services.NewGeminiService(cfg.Gemini.APIKey)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini: %v", err)
	}

	qdrantService, err := services.NewQdrantService(
		cfg.Qdrant.URL,
		cfg.Qdrant.APIKey,
		cfg.Qdrant.Collection,
	)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant: %v", err)
	}

	if err := qdrantService.InitCollection(); err != nil {
		log.Fatalf("❌ Failed to initialize collection: %v", err)
	}

	embeddingCache := services.NewEmbeddingCacheService(
		repositories.NewEmbeddingRepository(db),
		geminiService,
		qdrantService,
		map[string]float64{
			models.VectorFullText:   cfg.Matching.FullTextVecW,
			models.VectorSkills:     cfg.Matching.SkillsVecW,
			models.VectorExperience: cfg.Matching.ExperienceVecW,
		},
	)

	ctx := context.Background()

	candidates, err := repositories.NewCandidateRepository(db).FindAll(cfg.Matching.PoolLimit)
	if err != nil {
		log.Fatalf("❌ Failed to list candidates: %v", err)
	}

	processed := 0
	for i := range candidates {
		candidate := &candidates[i]
		if _, err := embeddingCache.GetOrCompute(ctx, models.EntityCandidate, candidate.ID, candidate.EmbeddingSources()); err != nil {
			log.Printf("⚠️  Skipping candidate %s: %v\n", candidate.ID, err)
			continue
		}
		processed++
	}
	log.Printf("✅ Processed %d/%d candidates\n", processed, len(candidates))

	jobs, err := repositories.NewJobRepository(db).FindAll(cfg.Matching.PoolLimit)
	if err != nil {
		log.Fatalf("❌ Failed to list jobs: %v", err)
	}

	processed = 0
	for i := range jobs {
		job := &jobs[i]
		if _, err := embeddingCache.GetOrCompute(ctx, models.EntityJob, job.ID, job.EmbeddingSources()); err != nil {
			log.Printf("⚠️  Skipping job %s: %v\n", job.ID, err)
			continue
		}
		processed++
	}
	log.Printf("✅ Processed %d/%d jobs\n", processed, len(jobs))

	log.Println("🎉 Embedding backfill completed")
}
