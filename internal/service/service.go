// Package service implements the URL shortening façade: record creation with
// unique code allocation, identifier resolution with best-effort visit
// recording, and on-demand analytics aggregation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/trimlink/trimlink/internal/database"
	"github.com/trimlink/trimlink/internal/models"
	"github.com/trimlink/trimlink/pkg/device"
	"github.com/trimlink/trimlink/pkg/geo"
	"github.com/trimlink/trimlink/pkg/shortcode"
)

var (
	// ErrMaxRetriesExceeded is returned when code generation cannot find a free
	// slot within the retry bound. This is a service fault, not an input problem.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")
	// ErrAliasTaken is returned when the requested custom alias collides with
	// an existing alias or short code.
	ErrAliasTaken = errors.New("custom alias is already taken")
	// ErrURLNotFound is returned when an identifier resolves to no record.
	ErrURLNotFound = errors.New("url not found")
	// ErrURLExpired is returned when an identifier resolves to a record past
	// its expiry. Distinct from ErrURLNotFound: the link existed and is now dead.
	ErrURLExpired = errors.New("url has expired")
	// ErrForbidden is returned when the caller does not own the record.
	ErrForbidden = errors.New("access denied")
)

// ValidationError reports malformed input: a bad destination URL, bad alias
// syntax or an out-of-range expiry.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// URLRepository defines the store interface the façade depends on. The store
// owns all atomicity guarantees: uniqueness is enforced at insert time and
// visit recording couples the event append with the counter increment.
type URLRepository interface {
	Create(ctx context.Context, url *models.URL) (*models.URL, error)
	GetByIdentifier(ctx context.Context, identifier string) (*models.URL, error)
	GetByOwnerAndURL(ctx context.Context, ownerID uuid.UUID, originalURL string) (*models.URL, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.URL, error)
	RecordVisit(ctx context.Context, urlID int64, visit models.Visit) error
	VisitsByURL(ctx context.Context, urlID int64) ([]models.Visit, error)
	VisitsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Visit, error)
}

// URLCache caches identifier resolution on the redirect hot path. Any error
// from Get is treated as a miss; cache failures never fail a redirect.
type URLCache interface {
	Get(ctx context.Context, identifier string) (*models.URL, error)
	Set(ctx context.Context, identifier string, url *models.URL) error
}

// VisitMeta carries the raw request metadata a visit is classified from.
type VisitMeta struct {
	IP        string
	UserAgent string
}

const (
	maxRetries           = 5
	defaultRecordTimeout = 5 * time.Second
)

type URLService struct {
	repo              URLRepository
	cache             URLCache
	geo               geo.Resolver
	logger            *slog.Logger
	shortCodeLength   int
	defaultExpiryDays int
	fallbackCountry   string
	recordTimeout     time.Duration
	now               func() time.Time
}

type Option func(*URLService)

// WithCache enables read-through resolution caching.
func WithCache(cache URLCache) Option {
	return func(s *URLService) {
		s.cache = cache
	}
}

// WithGeoResolver sets the IP-to-country resolver used for visit analytics.
func WithGeoResolver(r geo.Resolver) Option {
	return func(s *URLService) {
		s.geo = r
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *URLService) {
		s.logger = logger
	}
}

func WithShortCodeLength(n int) Option {
	return func(s *URLService) {
		s.shortCodeLength = n
	}
}

// WithDefaultExpiryDays sets the expiry applied to records created without an
// explicit one. Zero means records never expire by default.
func WithDefaultExpiryDays(days int) Option {
	return func(s *URLService) {
		s.defaultExpiryDays = days
	}
}

// WithFallbackCountry sets the country recorded for visits whose IP is
// unroutable or cannot be resolved.
func WithFallbackCountry(code string) Option {
	return func(s *URLService) {
		s.fallbackCountry = code
	}
}

// WithRecordTimeout bounds the detached visit recording call.
func WithRecordTimeout(d time.Duration) Option {
	return func(s *URLService) {
		s.recordTimeout = d
	}
}

// NewURLService creates the façade over the given store.
func NewURLService(repo URLRepository, opts ...Option) *URLService {
	s := &URLService{
		repo:            repo,
		logger:          slog.Default(),
		shortCodeLength: shortcode.DefaultLength,
		fallbackCountry: models.CountryUnknown,
		recordTimeout:   defaultRecordTimeout,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateShortURL validates the request and stores a new record. Creating the
// same destination again for the same owner without an alias returns the
// existing record instead of a duplicate; the second return value reports
// whether a record was actually created. Generated-code collisions are
// retried with a fresh code up to maxRetries attempts.
func (s *URLService) CreateShortURL(ctx context.Context, ownerID uuid.UUID, originalURL, customAlias string, expiresInDays int) (*models.URL, bool, error) {
	const op = "service.URLService.CreateShortURL"

	if err := validateOriginalURL(originalURL); err != nil {
		return nil, false, err
	}
	if expiresInDays < 0 {
		return nil, false, &ValidationError{Message: "expiry must not be negative"}
	}

	var alias string
	if customAlias != "" {
		if err := shortcode.ValidateAlias(customAlias); err != nil {
			return nil, false, &ValidationError{Message: err.Error()}
		}
		alias = shortcode.Normalize(customAlias)
	} else {
		existing, err := s.repo.GetByOwnerAndURL(ctx, ownerID, originalURL)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, database.ErrURLNotFound) {
			return nil, false, fmt.Errorf("%s: failed to check existing url: %w", op, err)
		}
	}

	var expiresAt *time.Time
	days := expiresInDays
	if days == 0 {
		days = s.defaultExpiryDays
	}
	if days > 0 {
		t := s.now().AddDate(0, 0, days)
		expiresAt = &t
	}

	for i := 0; i < maxRetries; i++ {
		code, err := shortcode.Generate(s.shortCodeLength)
		if err != nil {
			return nil, false, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		created, err := s.repo.Create(ctx, &models.URL{
			ShortCode:   code,
			CustomAlias: alias,
			OriginalURL: originalURL,
			OwnerID:     ownerID,
			ExpiresAt:   expiresAt,
		})
		if err != nil {
			if errors.Is(err, database.ErrShortCodeExists) {
				continue
			}
			if errors.Is(err, database.ErrAliasExists) {
				return nil, false, fmt.Errorf("%s: %w", op, ErrAliasTaken)
			}

			return nil, false, fmt.Errorf("%s: failed to create url: %w", op, err)
		}

		s.cacheURL(ctx, created)

		return created, true, nil
	}

	return nil, false, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// Redirect resolves an identifier to its destination and records the visit.
// Recording is dispatched on a detached goroutine with its own timeout: the
// redirect never waits for it and recording failures are logged, not surfaced.
func (s *URLService) Redirect(ctx context.Context, identifier string, meta VisitMeta) (string, error) {
	const op = "service.URLService.Redirect"

	url, err := s.resolve(ctx, identifier)
	if err != nil {
		if errors.Is(err, database.ErrURLNotFound) {
			return "", fmt.Errorf("%s: %w", op, ErrURLNotFound)
		}

		return "", fmt.Errorf("%s: failed to resolve identifier: %w", op, err)
	}

	if url.Expired(s.now()) {
		return "", fmt.Errorf("%s: %w", op, ErrURLExpired)
	}

	go s.recordVisit(url.ID, meta)

	return url.OriginalURL, nil
}

// GetAnalytics returns per-record statistics derived from its visits. The
// caller must own the record; the store itself is owner-agnostic.
func (s *URLService) GetAnalytics(ctx context.Context, ownerID uuid.UUID, identifier string, windowDays int) (*URLAnalytics, error) {
	const op = "service.URLService.GetAnalytics"

	url, err := s.repo.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, database.ErrURLNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to resolve identifier: %w", op, err)
	}

	if url.OwnerID != ownerID {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	visits, err := s.repo.VisitsByURL(ctx, url.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load visits: %w", op, err)
	}

	if windowDays <= 0 {
		windowDays = DefaultTimelineWindowDays
	}

	return &URLAnalytics{
		URL:       url,
		Countries: CountryHistogram(visits),
		Devices:   DeviceHistogram(visits),
		Timeline:  Timeline(visits, windowDays, s.now().UTC()),
	}, nil
}

// ListOwnerURLs returns the caller's records, newest first.
func (s *URLService) ListOwnerURLs(ctx context.Context, ownerID uuid.UUID) ([]models.URL, error) {
	const op = "service.URLService.ListOwnerURLs"

	urls, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	return urls, nil
}

// GetAggregatedAnalytics merges the histograms across all of the caller's records.
func (s *URLService) GetAggregatedAnalytics(ctx context.Context, ownerID uuid.UUID) (*AggregatedAnalytics, error) {
	const op = "service.URLService.GetAggregatedAnalytics"

	visits, err := s.repo.VisitsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load visits: %w", op, err)
	}

	return &AggregatedAnalytics{
		Countries: CountryHistogram(visits),
		Devices:   DeviceHistogram(visits),
	}, nil
}

func (s *URLService) resolve(ctx context.Context, identifier string) (*models.URL, error) {
	if s.cache != nil {
		if url, err := s.cache.Get(ctx, identifier); err == nil {
			return url, nil
		}
	}

	url, err := s.repo.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, identifier, url); err != nil {
			s.logger.Warn("failed to cache url", slog.String("identifier", identifier), slog.Any("err", err))
		}
	}

	return url, nil
}

func (s *URLService) cacheURL(ctx context.Context, url *models.URL) {
	if s.cache == nil {
		return
	}

	identifiers := []string{url.ShortCode}
	if url.CustomAlias != "" {
		identifiers = append(identifiers, url.CustomAlias)
	}

	for _, identifier := range identifiers {
		if err := s.cache.Set(ctx, identifier, url); err != nil {
			s.logger.Warn("failed to cache url", slog.String("identifier", identifier), slog.Any("err", err))
		}
	}
}

// recordVisit runs detached from the request that triggered it. It uses a
// fresh context so client disconnects cannot cancel the write.
func (s *URLService) recordVisit(urlID int64, meta VisitMeta) {
	ctx, cancel := context.WithTimeout(context.Background(), s.recordTimeout)
	defer cancel()

	visit := models.Visit{
		URLID:     urlID,
		Timestamp: s.now().UTC(),
		Country:   s.resolveCountry(meta.IP),
		Device:    device.Classify(meta.UserAgent),
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	}

	if err := s.repo.RecordVisit(ctx, urlID, visit); err != nil {
		s.logger.Error(
			"failed to record visit",
			slog.Int64("url_id", urlID),
			slog.Any("err", err),
		)
	}
}

func (s *URLService) resolveCountry(ipStr string) string {
	ip := net.ParseIP(ipStr)
	if geo.Unroutable(ip) {
		return s.fallbackCountry
	}

	if s.geo != nil {
		if code, ok := s.geo.Country(ip); ok {
			return code
		}
	}

	return models.CountryUnknown
}

func validateOriginalURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Message: "destination must be a valid URL"}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Message: "destination must be an absolute http or https URL"}
	}
	return nil
}
