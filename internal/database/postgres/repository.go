// Package postgres implements the URL store on PostgreSQL. Uniqueness of
// short codes and custom aliases is enforced by the url_identifiers primary
// key, and visit recording couples the event insert with the counter
// increment in a single transaction.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/trimlink/trimlink/internal/database"
	"github.com/trimlink/trimlink/internal/models"
	"github.com/trimlink/trimlink/pkg/device"
)

type urlRecord struct {
	ID          int64          `db:"id"`
	ShortCode   string         `db:"short_code"`
	CustomAlias sql.NullString `db:"custom_alias"`
	OriginalURL string         `db:"original_url"`
	OwnerID     uuid.UUID      `db:"owner_id"`
	VisitCount  int64          `db:"visit_count"`
	CreatedAt   time.Time      `db:"created_at"`
	ExpiresAt   sql.NullTime   `db:"expires_at"`
}

func (r *urlRecord) ToURL() *models.URL {
	url := &models.URL{
		ID:          r.ID,
		ShortCode:   r.ShortCode,
		OriginalURL: r.OriginalURL,
		OwnerID:     r.OwnerID,
		VisitCount:  r.VisitCount,
		CreatedAt:   r.CreatedAt,
	}

	if r.CustomAlias.Valid {
		url.CustomAlias = r.CustomAlias.String
	}
	if r.ExpiresAt.Valid {
		t := r.ExpiresAt.Time
		url.ExpiresAt = &t
	}

	return url
}

type visitRecord struct {
	ID        int64          `db:"id"`
	URLID     int64          `db:"url_id"`
	VisitedAt time.Time      `db:"visited_at"`
	Country   string         `db:"country"`
	Device    string         `db:"device"`
	IP        sql.NullString `db:"ip"`
	UserAgent sql.NullString `db:"user_agent"`
}

func (r *visitRecord) ToVisit() models.Visit {
	return models.Visit{
		ID:        r.ID,
		URLID:     r.URLID,
		Timestamp: r.VisitedAt,
		Country:   r.Country,
		Device:    device.Class(r.Device),
		IP:        r.IP.String,
		UserAgent: r.UserAgent.String,
	}
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{
		db: db,
	}
}

func isUniqueViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Create inserts the record and claims its identifiers in one transaction.
// The shared identifier namespace makes concurrent creations with the same
// code or alias serialize at the database: exactly one insert wins, the rest
// fail with ErrShortCodeExists or ErrAliasExists depending on which
// identifier collided.
func (r *URLRepository) Create(ctx context.Context, url *models.URL) (*models.URL, error) {
	const op = "database.postgres.URLRepository.Create"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rec := new(urlRecord)
	query := `INSERT INTO urls(short_code, custom_alias, original_url, owner_id, expires_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5)
		RETURNING *`

	var expiresAt sql.NullTime
	if url.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *url.ExpiresAt, Valid: true}
	}

	err = tx.GetContext(ctx, rec, query, url.ShortCode, url.CustomAlias, url.OriginalURL, url.OwnerID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create url record: %w", op, err)
	}

	const identifierQuery = `INSERT INTO url_identifiers(identifier, url_id, kind) VALUES ($1, $2, $3)`

	if _, err := tx.ExecContext(ctx, identifierQuery, url.ShortCode, rec.ID, "code"); err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to claim short code: %w", op, err)
	}

	if url.CustomAlias != "" {
		if _, err := tx.ExecContext(ctx, identifierQuery, url.CustomAlias, rec.ID, "alias"); err != nil {
			if isUniqueViolationError(err) {
				return nil, fmt.Errorf("%s: %w", op, database.ErrAliasExists)
			}

			return nil, fmt.Errorf("%s: failed to claim custom alias: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return rec.ToURL(), nil
}

// GetByIdentifier resolves a short code or custom alias to its record via the
// identifier namespace index. This lookup is on the hot path of every redirect.
func (r *URLRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.GetByIdentifier"

	rec := new(urlRecord)
	query := `SELECT u.* FROM urls u
		JOIN url_identifiers i ON i.url_id = u.id
		WHERE i.identifier = $1`

	err := r.db.GetContext(ctx, rec, query, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// GetByOwnerAndURL returns the owner's earliest record for the destination,
// supporting idempotent "already shortened" responses.
func (r *URLRepository) GetByOwnerAndURL(ctx context.Context, ownerID uuid.UUID, originalURL string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.GetByOwnerAndURL"

	rec := new(urlRecord)
	query := `SELECT * FROM urls
		WHERE owner_id = $1 AND original_url = $2
		ORDER BY created_at
		LIMIT 1`

	err := r.db.GetContext(ctx, rec, query, ownerID, originalURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// ListByOwner returns all of the owner's records, newest first.
func (r *URLRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.URL, error) {
	const op = "database.postgres.URLRepository.ListByOwner"

	var recs []urlRecord
	query := `SELECT * FROM urls
		WHERE owner_id = $1
		ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &recs, query, ownerID); err != nil {
		return nil, fmt.Errorf("%s: failed to list url records: %w", op, err)
	}

	urls := make([]models.URL, 0, len(recs))
	for i := range recs {
		urls = append(urls, *recs[i].ToURL())
	}

	return urls, nil
}

// RecordVisit appends the visit and increments the record's counter in one
// transaction. The UPDATE is a true in-database increment, so concurrent
// recordings on the same record serialize without lost updates, and the
// counter can never drift from the event log.
func (r *URLRepository) RecordVisit(ctx context.Context, urlID int64, visit models.Visit) error {
	const op = "database.postgres.URLRepository.RecordVisit"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `UPDATE urls SET visit_count = visit_count + 1 WHERE id = $1`, urlID)
	if err != nil {
		return fmt.Errorf("%s: failed to increment visit count: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
	}

	query := `INSERT INTO url_visits(url_id, visited_at, country, device, ip, user_agent)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))`

	_, err = tx.ExecContext(ctx, query, urlID, visit.Timestamp, visit.Country, string(visit.Device), visit.IP, visit.UserAgent)
	if err != nil {
		return fmt.Errorf("%s: failed to insert visit: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}

// VisitsByURL returns the record's visits in recording order.
func (r *URLRepository) VisitsByURL(ctx context.Context, urlID int64) ([]models.Visit, error) {
	const op = "database.postgres.URLRepository.VisitsByURL"

	var recs []visitRecord
	query := `SELECT * FROM url_visits
		WHERE url_id = $1
		ORDER BY visited_at`

	if err := r.db.SelectContext(ctx, &recs, query, urlID); err != nil {
		return nil, fmt.Errorf("%s: failed to list visits: %w", op, err)
	}

	visits := make([]models.Visit, 0, len(recs))
	for i := range recs {
		visits = append(visits, recs[i].ToVisit())
	}

	return visits, nil
}

// VisitsByOwner returns all visits across the owner's records, used for the
// cross-link analytics summary.
func (r *URLRepository) VisitsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Visit, error) {
	const op = "database.postgres.URLRepository.VisitsByOwner"

	var recs []visitRecord
	query := `SELECT v.* FROM url_visits v
		JOIN urls u ON u.id = v.url_id
		WHERE u.owner_id = $1
		ORDER BY v.visited_at`

	if err := r.db.SelectContext(ctx, &recs, query, ownerID); err != nil {
		return nil, fmt.Errorf("%s: failed to list visits: %w", op, err)
	}

	visits := make([]models.Visit, 0, len(recs))
	for i := range recs {
		visits = append(visits, recs[i].ToVisit())
	}

	return visits, nil
}
