package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Qdrant   QdrantConfig
	Gemini   GeminiConfig
	Matching MatchingConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
}

type GeminiConfig struct {
	APIKey string
}

// MatchingConfig holds the service-level scoring defaults. A job-level weight
// override, when present, takes precedence over SemanticWeight/CriteriaWeight.
type MatchingConfig struct {
	SemanticWeight   float64
	CriteriaWeight   float64
	MinSimilarity    float64
	ShortlistLimit   int
	PoolLimit        int
	FullTextVecW     float64
	SkillsVecW       float64
	ExperienceVecW   float64
	CriteriaFallback bool
}

type WorkerConfig struct {
	Concurrency       int
	Fanout            int
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RunTimeout        time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using default values.")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "matching_engine"),
		},
		Qdrant: QdrantConfig{
			URL:        getEnv("QDRANT_URL", "http://localhost:6333"),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "matching_entities"),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
		},
		Matching: MatchingConfig{
			SemanticWeight:   getEnvAsFloat("SEMANTIC_WEIGHT", 0.4),
			CriteriaWeight:   getEnvAsFloat("CRITERIA_WEIGHT", 0.6),
			MinSimilarity:    getEnvAsFloat("MIN_SIMILARITY", 0.0),
			ShortlistLimit:   getEnvAsInt("SHORTLIST_LIMIT", 200),
			PoolLimit:        getEnvAsInt("MATCH_POOL_LIMIT", 500),
			FullTextVecW:     getEnvAsFloat("VECTOR_WEIGHT_FULL_TEXT", 0.3),
			SkillsVecW:       getEnvAsFloat("VECTOR_WEIGHT_SKILLS", 0.4),
			ExperienceVecW:   getEnvAsFloat("VECTOR_WEIGHT_EXPERIENCE", 0.3),
			CriteriaFallback: getEnvAsBool("CRITERIA_ONLY_FALLBACK", true),
		},
		Worker: WorkerConfig{
			Concurrency:       getEnvAsInt("WORKER_CONCURRENCY", 3),
			Fanout:            getEnvAsInt("MATCH_FANOUT", 8),
			RetryMaxAttempts:  getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			RetryInitialDelay: getEnvAsDuration("RETRY_INITIAL_DELAY", "2s"),
			RunTimeout:        getEnvAsDuration("MATCH_RUN_TIMEOUT", "2m"),
		},
	}

	if err := cfg.Matching.Validate(); err != nil {
		log.Fatalf("❌ Invalid matching configuration: %v", err)
	}

	return cfg
}

// Validate rejects weight settings outside their valid ranges at load time.
// Blend weights that do not sum to 1.0 are allowed; only out-of-range values
// are configuration errors.
func (m *MatchingConfig) Validate() error {
	for name, w := range map[string]float64{
		"SEMANTIC_WEIGHT":          m.SemanticWeight,
		"CRITERIA_WEIGHT":          m.CriteriaWeight,
		"VECTOR_WEIGHT_FULL_TEXT":  m.FullTextVecW,
		"VECTOR_WEIGHT_SKILLS":     m.SkillsVecW,
		"VECTOR_WEIGHT_EXPERIENCE": m.ExperienceVecW,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, w)
		}
	}
	if m.MinSimilarity < -1 || m.MinSimilarity > 1 {
		return fmt.Errorf("MIN_SIMILARITY must be in [-1,1], got %v", m.MinSimilarity)
	}
	if m.ShortlistLimit <= 0 || m.PoolLimit <= 0 {
		return fmt.Errorf("SHORTLIST_LIMIT and MATCH_POOL_LIMIT must be positive")
	}
	return nil
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
