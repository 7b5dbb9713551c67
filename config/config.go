package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment  string
	Domains      []string
	CertCacheDir string
	HTTPPort     string
	LogDir       string

	PersistDirectory string
	UploadDirectory  string
	CollectionName   string
	DatabaseURL      string
	MaxUploadBytes   int64

	EmbeddingAPIBase     string
	EmbeddingAPIKey      string
	EmbeddingModel       string
	EmbeddingBatchSize   int
	EmbeddingConcurrency int

	LLMAPIBase     string
	LLMAPIKey      string
	LLMModel       string
	LLMTemperature float64

	RequestTimeout  time.Duration
	IngestTimeout   time.Duration
	ShutdownTimeout time.Duration
}

var isTest bool

func init() {
	isTest = os.Getenv("GO_ENVIRONMENT") == "test"
	if !isTest {
		err := godotenv.Load()
		if err != nil {
			log.Println("Warning: Error loading .env file:", err)
		}
	}
}

func Load() Config {
	return Config{
		Environment:  getEnv("ENVIRONMENT", "development"),
		Domains:      strings.Split(getEnv("DOMAIN", "example.com"), ","),
		CertCacheDir: getEnv("CERT_CACHE_DIR", "../kb_certs"),
		HTTPPort:     getEnv("HTTP_PORT", "8002"),
		LogDir:       getEnv("LOG_DIR", "logs/kb"),

		PersistDirectory: getEnv("PERSIST_DIRECTORY", "knowledge_base"),
		UploadDirectory:  getEnv("UPLOAD_DIRECTORY", "uploads"),
		CollectionName:   getEnv("COLLECTION_NAME", "knowledge_base"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		MaxUploadBytes:   int64(getEnvAsInt("MAX_UPLOAD_MB", 32)) << 20,

		EmbeddingAPIBase:     getEnv("EMBEDDING_API_BASE", "http://127.0.0.1:9997"),
		EmbeddingAPIKey:      getEnv("EMBEDDING_API_KEY", "None"),
		EmbeddingModel:       getEnv("EMBEDDING_MODEL", "m3e-large"),
		EmbeddingBatchSize:   getEnvAsInt("EMBEDDING_BATCH_SIZE", 32),
		EmbeddingConcurrency: getEnvAsInt("EMBEDDING_CONCURRENCY", 4),

		LLMAPIBase:     getEnv("LLM_API_BASE", "http://127.0.0.1:9997/v1"),
		LLMAPIKey:      getEnv("LLM_API_KEY", "None"),
		LLMModel:       getEnv("LLM_MODEL", "deepseek-r1-distill-qwen"),
		LLMTemperature: getEnvAsFloat("LLM_TEMPERATURE", 0.5),

		RequestTimeout:  time.Duration(getEnvAsInt("REQUEST_TIMEOUT", 120)) * time.Second,
		IngestTimeout:   time.Duration(getEnvAsInt("INGEST_TIMEOUT", 600)) * time.Second,
		ShutdownTimeout: time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT", 30)) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
