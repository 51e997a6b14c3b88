// Package server provides the HTTP server and routing for the simulator.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/tradesim/internal/di"
	chartshandlers "github.com/aristath/tradesim/internal/modules/charts/handlers"
	portfoliohandlers "github.com/aristath/tradesim/internal/modules/portfolio/handlers"
	tradinghandlers "github.com/aristath/tradesim/internal/modules/trading/handlers"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Container *di.Container     // DI container with all services
	Jobs      *di.JobInstances // optional, enables manual job triggers
	Port      int
	DevMode   bool
}

// Server represents the HTTP server
type Server struct {
	router             *chi.Mux
	server             *http.Server
	log                zerolog.Logger
	port               int
	container          *di.Container
	marketHandlers     *MarketHandlers
	simulationHandlers *SimulationHandlers
	systemHandlers     *SystemHandlers
	eventsStream       *EventsStreamHandler
	priceStream        *PriceStreamHandler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	c := cfg.Container
	log := cfg.Log.With().Str("component", "server").Logger()

	s := &Server{
		router:             chi.NewRouter(),
		log:                log,
		port:               cfg.Port,
		container:          c,
		marketHandlers:     NewMarketHandlers(c.Catalog, c.PriceBook, c.Controller, c.RegimePersistence, cfg.Log),
		simulationHandlers: NewSimulationHandlers(c.Controller, c.PriceFeed, c.Ledger, c.PersistenceService, c.EventManager, cfg.Log),
		systemHandlers:     NewSystemHandlers(c, cfg.Jobs, cfg.Log),
		eventsStream:       NewEventsStreamHandler(c.EventBus, cfg.Log),
		priceStream:        NewPriceStreamHandler(c.EventBus, c.PriceBook, cfg.Log),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays unset: SSE and websocket responses are long-lived
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// Router exposes the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	allowedOrigins := []string{"http://localhost:*", "http://127.0.0.1:*"}
	if devMode {
		allowedOrigins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: !devMode,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	c := s.container

	s.router.Route("/api", func(r chi.Router) {
		// Streams are long-lived and stay outside the request timeout
		r.Get("/events/stream", s.eventsStream.ServeHTTP)
		r.Get("/ws/prices", s.priceStream.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/health", s.systemHandlers.HandleHealth)
			r.Get("/catalog", s.marketHandlers.HandleGetCatalog)

			r.Route("/market", func(r chi.Router) {
				r.Get("/prices", s.marketHandlers.HandleGetPrices)
				r.Get("/prices/{symbol}", s.marketHandlers.HandleGetQuote)
				r.Get("/state", s.marketHandlers.HandleGetState)
				r.Post("/regime", s.marketHandlers.HandleSetRegime)
				r.Get("/regime/history", s.marketHandlers.HandleGetRegimeHistory)
				r.Post("/status", s.marketHandlers.HandleSetStatus)
				chartshandlers.NewHandler(c.ChartsService, c.Scheduler, s.log).RegisterRoutes(r)
			})

			r.Route("/simulation", func(r chi.Router) {
				r.Get("/", s.simulationHandlers.HandleStatus)
				r.Post("/start", s.simulationHandlers.HandleStart)
				r.Post("/stop", s.simulationHandlers.HandleStop)
				r.Post("/reset", s.simulationHandlers.HandleReset)
				r.Post("/save", s.simulationHandlers.HandleSave)
				r.Post("/load", s.simulationHandlers.HandleLoad)
			})

			portfoliohandlers.NewHandler(c.Ledger, c.PriceBook, c.EventManager, s.log).RegisterRoutes(r)
			tradinghandlers.NewTradingHandlers(c.TradingService, c.Catalog, s.log).RegisterRoutes(r)

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Post("/jobs/{job}", s.systemHandlers.HandleTriggerJob)
			})
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
