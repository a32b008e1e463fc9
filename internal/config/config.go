package config

import (
	"os"
	"strings"
	"time"
)

// Config agrupa todo lo que el proceso lee del entorno, una sola vez al
// arranque. Sin archivo .env obligatorio: en dev se carga con godotenv
// desde main, en despliegue vienen del entorno.
type Config struct {
	Port string

	// BackendAPIURL es la API clínica (login, consultas, pagos).
	BackendAPIURL string

	SupabaseURL     string
	SupabaseAnonKey string

	// WeatherAPIURL es opcional; vacío desactiva el clima del dashboard.
	WeatherAPIURL string

	// DBDSN opcional; vacío usa repos in-memory.
	DBDSN string

	// SessionJWTSecret firma la cookie de sesión. Vacío = modo dev
	// (header X-Debug-Session-ID o cookie cruda).
	SessionJWTSecret string

	HTTPTimeout time.Duration
}

func FromEnv() Config {
	return Config{
		Port:             getenv("PORT", "8080"),
		BackendAPIURL:    strings.TrimSpace(os.Getenv("BACKEND_API_URL")),
		SupabaseURL:      strings.TrimSpace(os.Getenv("SUPABASE_URL")),
		SupabaseAnonKey:  strings.TrimSpace(os.Getenv("SUPABASE_ANON_KEY")),
		WeatherAPIURL:    strings.TrimSpace(os.Getenv("WEATHER_API_URL")),
		DBDSN:            strings.TrimSpace(os.Getenv("DB_DSN")),
		SessionJWTSecret: os.Getenv("SESSION_JWT_SECRET"),
		HTTPTimeout:      getdur("HTTP_CLIENT_TIMEOUT", 15*time.Second),
	}
}

func (c Config) Addr() string {
	return ":" + c.Port
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
