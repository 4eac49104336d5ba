package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"talentmatch/matching-engine/internal/models"
)

// SimilarityService is the vector store boundary: upsert-by-entity-id of named
// vectors plus k-NN search over the combined vector with a cosine metric.
type SimilarityService interface {
	InitCollection() error
	UpsertEntity(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, vectors map[string][]float32) error
	FindCandidates(ctx context.Context, queryVector []float32, limit int, minSimilarity float64) ([]CandidateSimilarity, error)
	DeleteEntity(ctx context.Context, entityType models.EntityType, entityID uuid.UUID) error
}

// CandidateSimilarity is one shortlist entry: similarity is 1 - cosine
// distance, expected in [0,1] for normalized text embeddings.
type CandidateSimilarity struct {
	CandidateID uuid.UUID
	Similarity  float64
}

type qdrantService struct {
	client         *qdrant.Client
	collectionName string
	vectorSize     uint64
}

func NewQdrantService(urlStr, apiKey, collectionName string) (SimilarityService, error) {
	// Parse URL to extract host, port, and TLS usage
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsed.Hostname()
	useTLS := parsed.Scheme == "https"

	// For gRPC client, use port 6334 by default (gRPC port)
	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &qdrantService{
		client:         client,
		collectionName: collectionName,
		vectorSize:     embeddingDimensions,
	}, nil
}

// InitCollection implements SimilarityService. Every entity stores the four
// named vectors; similarity queries run against the combined one.
func (q *qdrantService) InitCollection() error {
	ctx := context.Background()

	exists, err := q.client.CollectionExists(ctx, q.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if exists {
		log.Println("✅ Collection already exists")
		return nil
	}

	params := func() *qdrant.VectorParams {
		return &qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			models.VectorFullText:   params(),
			models.VectorSkills:     params(),
			models.VectorExperience: params(),
			models.VectorCombined:   params(),
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Printf("✅ Qdrant collection '%s' created successfully\n", q.collectionName)
	return nil
}

// UpsertEntity implements SimilarityService. The point id is the entity id, so
// re-upserting the same entity overwrites rather than duplicates.
func (q *qdrantService) UpsertEntity(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, vectors map[string][]float32) error {
	named := make(map[string]*qdrant.Vector, len(vectors))
	for name, vec := range vectors {
		named[name] = qdrant.NewVectorDense(vec)
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(entityID.String()),
		Vectors: qdrant.NewVectorsMap(named),
		Payload: qdrant.NewValueMap(map[string]interface{}{
			"entity_type": string(entityType),
			"entity_id":   entityID.String(),
		}),
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collectionName,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}

	return nil
}

// FindCandidates implements SimilarityService. The minimum-similarity filter
// is pushed into the query as a score threshold, so it applies before the
// limit truncates anything.
func (q *qdrantService) FindCandidates(ctx context.Context, queryVector []float32, limit int, minSimilarity float64) ([]CandidateSimilarity, error) {
	if len(queryVector) == 0 {
		return nil, nil
	}

	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("entity_type", string(models.EntityCandidate)),
		},
	}

	query := &qdrant.QueryPoints{
		CollectionName: q.collectionName,
		Query:          qdrant.NewQuery(queryVector...),
		Using:          qdrant.PtrOf(models.VectorCombined),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if minSimilarity > 0 {
		query.ScoreThreshold = qdrant.PtrOf(float32(minSimilarity))
	}

	searchResult, err := q.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var results []CandidateSimilarity
	for _, point := range searchResult {
		idValue, ok := point.Payload["entity_id"]
		if !ok {
			continue
		}
		strValue, ok := idValue.GetKind().(*qdrant.Value_StringValue)
		if !ok {
			continue
		}
		candidateID, err := uuid.Parse(strValue.StringValue)
		if err != nil {
			log.Printf("⚠️  Skipping point with malformed entity_id %q\n", strValue.StringValue)
			continue
		}

		results = append(results, CandidateSimilarity{
			CandidateID: candidateID,
			Similarity:  float64(point.Score),
		})
	}

	return results, nil
}

// DeleteEntity implements SimilarityService.
func (q *qdrantService) DeleteEntity(ctx context.Context, entityType models.EntityType, entityID uuid.UUID) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("entity_type", string(entityType)),
			qdrant.NewMatch("entity_id", entityID.String()),
		},
	}

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collectionName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: filter,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}

	return nil
}
