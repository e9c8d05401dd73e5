package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr       string
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	CORSOrigin string
	RedisURL   string

	// Backend Record Service
	BackendURL string
	// BackendInteractionFilter reports whether the backend supports
	// filtering GET /interactions by opportunity_id. When false the proxy
	// fetches the full set and filters locally.
	BackendInteractionFilter bool

	// Record service (recordd)
	RecordAddr    string
	DatabaseURL   string
	MigrationsDir string
	SeedDemo      bool

	MeiliURL       string
	MeiliMasterKey string
}

func Load() Config {
	return Config{
		Addr:       getenv("API_ADDR", ":8787"),
		JWTSecret:  getenv("CRM_JWT_SECRET", "crmlite-dev-secret"),
		AccessTTL:  time.Duration(getenvInt("CRM_ACCESS_TTL_SECONDS", 900)) * time.Second,
		RefreshTTL: time.Duration(getenvInt("CRM_REFRESH_TTL_SECONDS", 2592000)) * time.Second,
		CORSOrigin: getenv("CRM_CORS_ORIGIN", "*"),
		RedisURL:   getenv("REDIS_URL", "redis://localhost:6379/0"),

		BackendURL:               getenv("BACKEND_URL", "http://127.0.0.1:8000"),
		BackendInteractionFilter: getenvBool("CRM_BACKEND_INTERACTION_FILTER", true),

		RecordAddr:    getenv("RECORD_ADDR", ":8000"),
		DatabaseURL:   getenv("DATABASE_URL", ""),
		MigrationsDir: getenv("CRM_MIGRATIONS_DIR", "./db/migrations"),
		SeedDemo:      getenvBool("CRM_SEED_DEMO", true),

		// Meilisearch - empty URL disables it, search falls back to the store
		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
