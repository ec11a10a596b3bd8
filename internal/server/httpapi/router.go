package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig bundles everything the router needs.
type RouterConfig struct {
	Auth       *AuthHandler
	Vault      *VaultHandler
	Biometrics *BiometricHandler
	Settings   *SettingsHandler
	Gate       VerificationGate
	SecretKey  []byte
}

// NewRouter builds the full route table. Sensitive vault routes (revealing
// or mutating a single secret) additionally pass the re-verification gate.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", cfg.Auth.Register)
		r.Post("/login", cfg.Auth.Login)
		r.Post("/otp/request", cfg.Auth.RequestOTP)
		r.Post("/otp/verify", cfg.Auth.VerifyOTP)

		r.Group(func(r chi.Router) {
			r.Use(Authenticator(cfg.SecretKey))
			r.Put("/password", cfg.Auth.ChangePassword)
			r.Get("/biometrics", cfg.Biometrics.Profile)
			r.Post("/biometrics/{type}", cfg.Biometrics.Save)
			r.Post("/biometrics/{type}/match", cfg.Biometrics.Match)
		})
	})

	r.Route("/vault", func(r chi.Router) {
		r.Use(Authenticator(cfg.SecretKey))

		r.Post("/add", cfg.Vault.Add)
		r.Get("/vault", cfg.Vault.List)
		r.Post("/import-passwords", cfg.Vault.Import)
		r.Delete("/delete/{passwordId}", cfg.Vault.Delete)

		r.Group(func(r chi.Router) {
			r.Use(Sensitive(cfg.Gate))
			r.Get("/{passwordId}", cfg.Vault.Get)
			r.Put("/update/{passwordId}", cfg.Vault.Update)
		})
	})

	r.Route("/settings", func(r chi.Router) {
		r.Use(Authenticator(cfg.SecretKey))
		r.Get("/", cfg.Settings.Get)
		r.Put("/", cfg.Settings.Update)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorCode(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorCode(w, http.StatusMethodNotAllowed, "VALIDATION", "method not allowed")
	})

	return r
}
