// Package http exposes the service over a chi router: an authenticated API
// under /api/v1 and the public redirect route at the root.
package http

import (
	"context"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trimlink/trimlink/internal/auth"
	"github.com/trimlink/trimlink/internal/models"
	"github.com/trimlink/trimlink/internal/service"
)

// URLService defines the interface for the core URL shortening business logic.
type URLService interface {
	// CreateShortURL stores a new shortened URL for the owner, or returns the
	// existing record when the same destination was already shortened without
	// an alias. The bool reports whether a record was created.
	CreateShortURL(ctx context.Context, ownerID uuid.UUID, originalURL, customAlias string, expiresInDays int) (*models.URL, bool, error)

	// Redirect resolves a short code or custom alias to its destination,
	// recording the visit as a best-effort side effect.
	Redirect(ctx context.Context, identifier string, meta service.VisitMeta) (string, error)

	// GetAnalytics returns the record's visit statistics to its owner.
	GetAnalytics(ctx context.Context, ownerID uuid.UUID, identifier string, windowDays int) (*service.URLAnalytics, error)

	// ListOwnerURLs returns the owner's records, newest first.
	ListOwnerURLs(ctx context.Context, ownerID uuid.UUID) ([]models.URL, error)

	// GetAggregatedAnalytics merges histograms across the owner's records.
	GetAggregatedAnalytics(ctx context.Context, ownerID uuid.UUID) (*service.AggregatedAnalytics, error)
}

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// getValidate initializes a validator for incoming request payloads, with
// JSON tag names in error messages and the custom alias syntax rule.
func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("alias", func(fl validator.FieldLevel) bool {
		return aliasPattern.MatchString(fl.Field().String())
	})

	return validate
}

// NewRouter initializes and returns a new HTTP router with all routes and middleware configured.
func NewRouter(logger *httplog.Logger, urlSvc URLService, tokens *auth.TokenService, baseURL string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		validate := getValidate()

		r.Get("/ping", handlePing)

		r.Group(func(r chi.Router) {
			r.Use(WithIdentity(tokens))

			r.Route("/urls", func(r chi.Router) {
				r.Post("/", handleCreateURL(urlSvc, validate, baseURL))
				r.Get("/", handleListURLs(urlSvc, baseURL))
				r.Get("/{identifier}/analytics", handleGetURLAnalytics(urlSvc, baseURL))
			})

			r.Get("/analytics", handleAggregatedAnalytics(urlSvc))
		})
	})

	r.Get("/{identifier}", handleRedirect(urlSvc))

	return r
}
