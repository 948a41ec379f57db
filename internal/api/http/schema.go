package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/trimlink/trimlink/internal/models"
	"github.com/trimlink/trimlink/internal/service"
	"github.com/trimlink/trimlink/pkg/device"
)

// createURLRequest represents the request payload for shortening a URL.
type createURLRequest struct {
	URL           string `json:"url" validate:"required,url"`
	CustomAlias   string `json:"custom_alias,omitempty" validate:"omitempty,min=3,max=50,alias"`
	ExpiresInDays int    `json:"expires_in_days,omitempty" validate:"omitempty,gte=1,lte=3650"`
}

// urlResponse represents a shortened URL in API responses. ShortCode is the
// code the record is shared under: the custom alias when one was set.
type urlResponse struct {
	OriginalURL string     `json:"original_url"`
	ShortURL    string     `json:"short_url"`
	ShortCode   string     `json:"short_code"`
	VisitCount  int64      `json:"visit_count"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	IsExpired   bool       `json:"is_expired"`
}

func toURLResponse(url *models.URL, baseURL string) urlResponse {
	code := url.Identifier()

	return urlResponse{
		OriginalURL: url.OriginalURL,
		ShortURL:    fmt.Sprintf("%s/%s", strings.TrimRight(baseURL, "/"), code),
		ShortCode:   code,
		VisitCount:  url.VisitCount,
		CreatedAt:   url.CreatedAt,
		ExpiresAt:   url.ExpiresAt,
		IsExpired:   url.Expired(time.Now()),
	}
}

// analyticsResponse represents per-record visit statistics.
type analyticsResponse struct {
	ShortCode  string                 `json:"short_code"`
	ShortURL   string                 `json:"short_url"`
	VisitCount int64                  `json:"visit_count"`
	Countries  map[string]int64       `json:"countries"`
	Devices    map[device.Class]int64 `json:"devices"`
	Timeline   map[string]int64       `json:"timeline"`
}

func toAnalyticsResponse(analytics *service.URLAnalytics, baseURL string) analyticsResponse {
	code := analytics.URL.Identifier()

	return analyticsResponse{
		ShortCode:  code,
		ShortURL:   fmt.Sprintf("%s/%s", strings.TrimRight(baseURL, "/"), code),
		VisitCount: analytics.URL.VisitCount,
		Countries:  analytics.Countries,
		Devices:    analytics.Devices,
		Timeline:   analytics.Timeline,
	}
}

// aggregatedAnalyticsResponse represents histograms merged across all of the
// caller's records.
type aggregatedAnalyticsResponse struct {
	Countries map[string]int64       `json:"countries"`
	Devices   map[device.Class]int64 `json:"devices"`
}
