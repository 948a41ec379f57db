package http

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/trimlink/trimlink/internal/service"
	"github.com/trimlink/trimlink/pkg/response"
)

// handlePing handles health check requests to ensure the server is running.
func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

// handleCreateURL handles POST requests to shorten a URL.
//
// The handler validates the payload, then delegates to the service, which
// either creates a record or returns the caller's existing record for the
// same destination when no alias was requested.
func handleCreateURL(svc URLService, validate *validator.Validate, baseURL string) http.HandlerFunc {
	const op = "api.http.handleCreateURL"
	const createdMsg = "Short URL created successfully."
	const existingMsg = "URL already shortened."

	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := OwnerID(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.UnauthorizedResponse)
			return
		}

		var req createURLRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		url, created, err := svc.CreateShortURL(r.Context(), ownerID, req.URL, req.CustomAlias, req.ExpiresInDays)
		if err != nil {
			var validationErr *service.ValidationError
			if errors.As(err, &validationErr) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ValidationErrorResponse(validationErr))
				return
			}
			if errors.Is(err, service.ErrAliasTaken) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.AliasTakenResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		if !created {
			render.Status(r, http.StatusOK)
			render.JSON(w, r, response.SuccessResponse(existingMsg, toURLResponse(url, baseURL)))
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(createdMsg, toURLResponse(url, baseURL)))
	}
}

// handleRedirect handles GET requests on a short code or custom alias and
// issues a 302 to the destination. Visit recording happens as a side effect
// inside the service and never delays or fails the redirect.
func handleRedirect(svc URLService) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		identifier := chi.URLParam(r, "identifier")

		destination, err := svc.Redirect(r.Context(), identifier, service.VisitMeta{
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		})
		if err != nil {
			if errors.Is(err, service.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}
			if errors.Is(err, service.ErrURLExpired) {
				render.Status(r, http.StatusGone)
				render.JSON(w, r, response.URLExpiredResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		http.Redirect(w, r, destination, http.StatusFound)
	}
}

// handleListURLs handles GET requests for all of the caller's shortened URLs.
func handleListURLs(svc URLService, baseURL string) http.HandlerFunc {
	const op = "api.http.handleListURLs"
	const successMsg = "URLs retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := OwnerID(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.UnauthorizedResponse)
			return
		}

		urls, err := svc.ListOwnerURLs(r.Context(), ownerID)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		data := make([]urlResponse, 0, len(urls))
		for i := range urls {
			data = append(data, toURLResponse(&urls[i], baseURL))
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, data))
	}
}

// handleGetURLAnalytics handles GET requests for a record's visit statistics.
// Only the record's owner may read them.
func handleGetURLAnalytics(svc URLService, baseURL string) http.HandlerFunc {
	const op = "api.http.handleGetURLAnalytics"
	const successMsg = "URL analytics retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := OwnerID(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.UnauthorizedResponse)
			return
		}

		identifier := chi.URLParam(r, "identifier")
		windowDays, _ := strconv.Atoi(r.URL.Query().Get("window_days"))

		analytics, err := svc.GetAnalytics(r.Context(), ownerID, identifier, windowDays)
		if err != nil {
			if errors.Is(err, service.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}
			if errors.Is(err, service.ErrForbidden) {
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.ForbiddenResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toAnalyticsResponse(analytics, baseURL)))
	}
}

// handleAggregatedAnalytics handles GET requests for histograms merged across
// all of the caller's records.
func handleAggregatedAnalytics(svc URLService) http.HandlerFunc {
	const op = "api.http.handleAggregatedAnalytics"
	const successMsg = "Aggregated analytics retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := OwnerID(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.UnauthorizedResponse)
			return
		}

		analytics, err := svc.GetAggregatedAnalytics(r.Context(), ownerID)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, aggregatedAnalyticsResponse{
			Countries: analytics.Countries,
			Devices:   analytics.Devices,
		}))
	}
}

// clientIP returns the request's client address without the port. The RealIP
// middleware has already substituted X-Forwarded-For / X-Real-IP when present.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
