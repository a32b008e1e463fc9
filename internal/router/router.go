package router

import (
	"database/sql"
	"fmt"
	"net/http"

	_ "vet-clinical-support/docs"
	clinicaladapter "vet-clinical-support/internal/adapters/clinical"
	mem "vet-clinical-support/internal/adapters/storage/memory"
	pg "vet-clinical-support/internal/adapters/storage/postgres"
	"vet-clinical-support/internal/adapters/supabase"
	"vet-clinical-support/internal/adapters/weather"
	"vet-clinical-support/internal/config"
	"vet-clinical-support/internal/domain/authflow"
	"vet-clinical-support/internal/domain/cedula"
	"vet-clinical-support/internal/domain/consultations"
	"vet-clinical-support/internal/domain/membership"
	"vet-clinical-support/internal/domain/session"
	"vet-clinical-support/internal/domain/views"
	"vet-clinical-support/internal/middleware"
	"vet-clinical-support/internal/platform/logger"
	"vet-clinical-support/internal/ports/clinical"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	Cfg config.Config
	Log logger.Logger

	// Overrides para tests; nil construye el adapter real desde Cfg.
	API      clinical.API
	Provider session.Provider
	Mirror   consultations.Mirror
	Lab      consultations.LabStorage
	Weather  views.WeatherAPI

	// Opcional: si viene, usa Postgres para sesiones. Si no, intenta
	// DB_DSN y cae a in-memory.
	DB *sql.DB
}

func NewRouter(opts Options) (http.Handler, error) {
	log := opts.Log
	if log == nil {
		log = logger.Nop{}
	}

	api := opts.API
	if api == nil {
		c, err := clinicaladapter.NewClient(clinicaladapter.Config{
			BaseURL: opts.Cfg.BackendAPIURL,
			Timeout: opts.Cfg.HTTPTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("clinical client: %w", err)
		}
		api = c
	}

	provider := opts.Provider
	mirror := opts.Mirror
	lab := opts.Lab
	if opts.Cfg.SupabaseURL != "" && provider == nil {
		sb, err := supabase.NewClient(supabase.Config{
			BaseURL: opts.Cfg.SupabaseURL,
			AnonKey: opts.Cfg.SupabaseAnonKey,
			Timeout: opts.Cfg.HTTPTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("supabase client: %w", err)
		}
		provider = supabase.NewSessionProvider(sb)
		if mirror == nil {
			mirror = supabase.NewConsultationMirror(sb)
		}
		if lab == nil {
			lab = supabase.NewLabStorage(sb, "")
		}
	}

	weatherAPI := opts.Weather
	if weatherAPI == nil && opts.Cfg.WeatherAPIURL != "" {
		wc, err := weather.NewClient(weather.Config{
			BaseURL: opts.Cfg.WeatherAPIURL,
			Timeout: opts.Cfg.HTTPTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("weather client: %w", err)
		}
		weatherAPI = wc
	}

	// Sesiones: Postgres cuando hay DSN, in-memory si no. Los flujos de
	// credenciales (nonce 2FA, gate de cédula) viven siempre en memoria:
	// el nonce es efímero y la contraseña retenida jamás toca disco.
	var sessionRepo session.Repository
	db := opts.DB
	if db == nil && opts.Cfg.DBDSN != "" {
		opened, err := pg.Open(opts.Cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		db = opened
	}
	if db != nil {
		sessionRepo = pg.NewSessionsRepo(db)
	} else {
		sessionRepo = mem.NewSessionsRepo()
	}
	pendingRepo := mem.NewPendingRepo()
	flowRepo := mem.NewCedulaFlowRepo()

	// Services por módulo
	sessionsSvc := session.NewService(sessionRepo, api, provider, log)
	authflowSvc := authflow.NewService(api, sessionsSvc, pendingRepo, flowRepo, log)
	cedulaSvc := cedula.NewService(api, sessionsSvc, flowRepo, log)
	consultSvc := consultations.NewService(api, mirror, lab, log)
	memberSvc := membership.NewService(api, sessionsSvc, log)
	viewsHandler := views.NewHandler(sessionsSvc, weatherAPI, log)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.SessionContext([]byte(opts.Cfg.SessionJWTSecret)))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Rutas por módulo
	session.RegisterRoutes(r, sessionsSvc)
	authflow.RegisterRoutes(r, authflowSvc)
	cedula.RegisterRoutes(r, cedulaSvc)
	consultations.RegisterRoutes(r, consultSvc, sessionsSvc)
	membership.RegisterRoutes(r, memberSvc, sessionsSvc)
	viewsHandler.RegisterRoutes(r)

	return r, nil
}
