package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/property-evaluation/internal/auth"
	"github.com/frahmantamala/property-evaluation/internal/rbac"
	"github.com/frahmantamala/property-evaluation/internal/transport/middleware"
	"github.com/frahmantamala/property-evaluation/internal/transport/swagger"
	"github.com/go-chi/chi"
)

// RegisterAllRoutes wires the authorization boundary. Every RBAC management
// route is gated on a (action, resource) permission against the decision
// engine; auth routes are public except the profile group.
func RegisterAllRoutes(
	router *chi.Mux,
	db *sql.DB,
	authHandler *auth.Handler,
	rbacHandler *rbac.Handler,
	checker middleware.PermissionChecker,
	logger *slog.Logger,
) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	readUsers := middleware.RequirePermission(checker, logger, "read", "user_management")
	editUsers := middleware.RequirePermission(checker, logger, "edit", "user_management")
	readRoles := middleware.RequirePermission(checker, logger, "read", "role_management")
	editRoles := middleware.RequirePermission(checker, logger, "edit", "role_management")

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/register", authHandler.Register)
			sr.Post("/login", authHandler.Login)
			sr.Post("/refresh", authHandler.RefreshToken)
			sr.Post("/logout", authHandler.Logout)

			sr.Group(func(pr chi.Router) {
				pr.Use(authHandler.AuthMiddleware)
				pr.Get("/profile", authHandler.GetProfile)
				pr.Put("/profile", authHandler.UpdateProfile)
				pr.Delete("/profile", authHandler.DeleteProfile)
			})
		})

		r.Route("/rbac", func(sr chi.Router) {
			sr.Use(authHandler.AuthMiddleware)

			sr.Group(func(ur chi.Router) {
				ur.Use(readUsers)
				ur.Get("/users", rbacHandler.GetUsers)
				ur.Get("/users/{id}", rbacHandler.GetUser)
				ur.Get("/users/{id}/permissions", rbacHandler.GetUserPermissions)
			})

			sr.Group(func(ur chi.Router) {
				ur.Use(editUsers)
				ur.Post("/users", rbacHandler.CreateUser)
				ur.Put("/users/{id}", rbacHandler.UpdateUser)
				ur.Delete("/users/{id}", rbacHandler.DeleteUser)
				ur.Post("/users/{id}/roles", rbacHandler.AssignRole)
				ur.Delete("/users/{id}/roles/{roleID}", rbacHandler.RemoveRole)
			})

			sr.Group(func(rr chi.Router) {
				rr.Use(readRoles)
				rr.Get("/roles", rbacHandler.GetRoles)
				rr.Get("/roles/{id}", rbacHandler.GetRole)
				rr.Get("/permissions", rbacHandler.GetPermissions)
				rr.Get("/permissions/{id}", rbacHandler.GetPermission)
			})

			sr.Group(func(rr chi.Router) {
				rr.Use(editRoles)
				rr.Post("/roles", rbacHandler.CreateRole)
				rr.Put("/roles/{id}", rbacHandler.UpdateRole)
				rr.Delete("/roles/{id}", rbacHandler.DeleteRole)
				rr.Post("/roles/{id}/permissions", rbacHandler.AssignPermission)
				rr.Delete("/roles/{id}/permissions/{permissionID}", rbacHandler.RemovePermission)
				rr.Post("/permissions", rbacHandler.CreatePermission)
				rr.Put("/permissions/{id}", rbacHandler.UpdatePermission)
				rr.Delete("/permissions/{id}", rbacHandler.DeletePermission)
			})

			// Any authenticated principal may ask the decision engine.
			sr.Post("/permissions/check", rbacHandler.CheckPermission)
		})
	})
}
