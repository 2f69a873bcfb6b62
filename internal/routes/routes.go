package routes

import (
	"net/http"

	"github.com/greencore/api/internal/app"
	"github.com/greencore/api/internal/handler"
	"github.com/greencore/api/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	health := handler.NewHealthHandler(app.DB)
	auth := handler.NewAuthHandler(app.AuthService, app.Cfg)
	user := handler.NewUserHandler(app.UserService, app.AuthService)
	energy := handler.NewEnergyHandler(app.EnergyService)
	newsletter := handler.NewNewsletterHandler(app.NewsletterService)
	admin := handler.NewAdminHandler(app.AdminService, app.NewsletterService, app.CO2Service)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /api/health", health.Health)

	// Auth (rate limited)
	rateLimiter := middleware.RateLimitAuth(app.Cfg.AuthRateLimit, app.Cfg.AuthRateWindow)

	mux.HandleFunc("POST /api/auth/register", rateLimiter(auth.Register))
	mux.HandleFunc("POST /api/auth/login", rateLimiter(auth.Login))
	mux.HandleFunc("POST /api/auth/refresh", auth.Refresh)
	mux.HandleFunc("POST /api/auth/logout", auth.Logout)
	mux.HandleFunc("POST /api/auth/forgot-password", rateLimiter(auth.ForgotPassword))
	mux.HandleFunc("POST /api/auth/reset-password", rateLimiter(auth.ResetPassword))
	mux.HandleFunc("POST /api/auth/recover-username", rateLimiter(auth.RecoverUsername))

	// OAuth code exchange
	mux.HandleFunc("POST /api/auth/google", rateLimiter(auth.Google))
	mux.HandleFunc("POST /api/auth/github", rateLimiter(auth.GitHub))

	// Newsletter
	mux.HandleFunc("POST /api/newsletter/subscribe", newsletter.Subscribe)
	mux.HandleFunc("GET /api/newsletter/unsubscribe/{token}", newsletter.Unsubscribe)

	// ============================================================================
	// AUTHENTICATED ROUTES
	// ============================================================================

	// Current user
	mux.HandleFunc("GET /api/users/me", middleware.RequireAuth(user.Me))
	mux.HandleFunc("PATCH /api/users/me", middleware.RequireAuth(user.UpdateProfile))
	mux.HandleFunc("POST /api/users/me/password", middleware.RequireAuth(user.ChangePassword))
	mux.HandleFunc("DELETE /api/users/me", middleware.RequireAuth(user.DeleteAccount))

	// Energy entries. Fixed segments are registered alongside the {id}
	// wildcard; the mux prefers the more specific literal patterns.
	mux.HandleFunc("GET /api/energy/stats", middleware.RequireAuth(energy.Stats))
	mux.HandleFunc("GET /api/energy/chart", middleware.RequireAuth(energy.Chart))
	mux.HandleFunc("GET /api/energy/recent", middleware.RequireAuth(energy.Recent))
	mux.HandleFunc("GET /api/energy", middleware.RequireAuth(energy.List))
	mux.HandleFunc("POST /api/energy", middleware.RequireAuth(energy.Create))
	mux.HandleFunc("GET /api/energy/{id}", middleware.RequireAuth(energy.Get))
	mux.HandleFunc("PUT /api/energy/{id}", middleware.RequireAuth(energy.Update))
	mux.HandleFunc("DELETE /api/energy/{id}", middleware.RequireAuth(energy.Delete))

	// ============================================================================
	// ADMIN ROUTES
	// ============================================================================

	mux.HandleFunc("GET /api/admin/stats", middleware.RequireAdmin(admin.Stats))
	mux.HandleFunc("GET /api/admin/users", middleware.RequireAdmin(admin.ListUsers))
	mux.HandleFunc("PATCH /api/admin/users/{id}/role", middleware.RequireAdmin(admin.UpdateRole))
	mux.HandleFunc("PATCH /api/admin/users/{id}/active", middleware.RequireAdmin(admin.ToggleActive))
	mux.HandleFunc("DELETE /api/admin/users/{id}", middleware.RequireAdmin(admin.DeleteUser))

	mux.HandleFunc("GET /api/admin/subscribers", middleware.RequireAdmin(admin.ListSubscribers))
	mux.HandleFunc("DELETE /api/admin/subscribers/{id}", middleware.RequireAdmin(admin.DeleteSubscriber))
	mux.HandleFunc("POST /api/admin/newsletter/broadcast", middleware.RequireAdmin(admin.Broadcast))

	mux.HandleFunc("POST /api/admin/co2/recalculate", middleware.RequireAdmin(admin.RecalcCO2))

	// ============================================================================
	// GLOBAL MIDDLEWARE
	// ============================================================================

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.RequestLogging,
		middleware.CORS(app.Cfg.CORSOrigins),
		middleware.Auth(app.AuthService, app.UserRepository),
	)
}
