package main

import (
	"net/http"
	"os"
	"time"

	"vet-clinical-support/internal/config"
	"vet-clinical-support/internal/platform/logger"
	"vet-clinical-support/internal/router"

	"github.com/joho/godotenv"
)

// @title Vet Clinical Support API
// @version 1.0
// @description BFF de soporte clínico veterinario: sesión, autenticación con
// @description gating de cédula, wizard de consultas y membresías.
// @BasePath /
func main() {
	// .env es opcional: en despliegue las vars vienen del entorno
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.NewFromEnv()

	r, err := router.NewRouter(router.Options{Cfg: cfg, Log: log})
	if err != nil {
		log.Error("startup failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("starting server", map[string]any{"addr": cfg.Addr()})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
