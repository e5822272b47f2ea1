package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prodtrack/api/internal/config"
	"github.com/prodtrack/api/internal/database"
	"github.com/prodtrack/api/internal/enum"
	"github.com/prodtrack/api/internal/handler"
	mw "github.com/prodtrack/api/internal/middleware"
	"github.com/prodtrack/api/internal/service"
	"github.com/prodtrack/api/internal/shift"
	"github.com/prodtrack/api/internal/ws"
	"github.com/rs/zerolog"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, plant scoping, and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, log zerolog.Logger) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	})

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret, log)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/lines/{line}/orders", hub.Handler(cfg.JWTSecret))

	cal := shift.NewCalendar(cfg.ShiftLocation)

	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, newOrderStore, cal, log.With().Str("component", "orders").Logger())
	orderHandler := handler.NewOrderHandler(orderService, queries, hub, log)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		shiftHandler := handler.NewShiftHandler(cal)
		shiftHandler.RegisterRoutes(r)

		orderHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.LifecycleTimeout))
			orderHandler.RegisterLifecycleRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleAdmin, enum.UserRoleSupervisor))
				orderHandler.RegisterCorrectionRoutes(r)
			})
		})

		r.Route("/plants/{plant}/groups", func(r chi.Router) {
			r.Use(mw.RequirePlant)
			groupHandler := handler.NewGroupHandler(queries, log)
			groupHandler.RegisterRoutes(r)
		})

		r.Route("/plants/{plant}/reports", func(r chi.Router) {
			r.Use(mw.RequirePlant)
			reportHandler := handler.NewReportHandler(queries, cal, log)
			reportHandler.RegisterRoutes(r)
		})

		r.Route("/plants/{plant}/users", func(r chi.Router) {
			r.Use(mw.RequirePlant)
			r.Use(mw.RequireRole(enum.UserRoleAdmin, enum.UserRoleSupervisor))
			userHandler := handler.NewUserHandler(queries, log)
			userHandler.RegisterRoutes(r)
		})
	})

	log.Debug().Msg("router initialized")
	return r
}
