package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/facegate/internal/config"
	"github.com/your-org/facegate/internal/models"
)

// foreignKeyViolation is the Postgres SQLSTATE for a broken FK reference.
const foreignKeyViolation = "23503"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	return NewPostgresStoreFromDSN(context.Background(), cfg.DSN(), cfg.MaxConns)
}

func NewPostgresStoreFromDSN(ctx context.Context, dsn string, maxConns int) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Faces ---

// CreateFace inserts a face and fills in its generated id and creation time.
func (s *PostgresStore) CreateFace(ctx context.Context, f *models.Face) error {
	var descriptor *pgvector.Vector
	if len(f.Descriptor) > 0 {
		v := pgvector.NewVector(f.Descriptor)
		descriptor = &v
	}
	var thumbnail *string
	if f.Thumbnail != "" {
		thumbnail = &f.Thumbnail
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO faces (external_id, descriptor, thumbnail, consent) VALUES ($1, $2, $3, $4)
		 RETURNING face_id, created_at`,
		f.ExternalID, descriptor, thumbnail, f.Consent,
	).Scan(&f.FaceID, &f.CreatedAt)
	if err != nil {
		return fmt.Errorf("create face: %w", err)
	}
	return nil
}

// FacesByExternalIDs returns the faces for the given external ids keyed by
// external id. Unknown ids are absent from the map. Descriptors are not loaded.
func (s *PostgresStore) FacesByExternalIDs(ctx context.Context, externalIDs []string) (map[string]models.Face, error) {
	faces := make(map[string]models.Face, len(externalIDs))
	if len(externalIDs) == 0 {
		return faces, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT face_id, external_id, COALESCE(thumbnail, ''), consent, created_at
		 FROM faces WHERE external_id = ANY($1)`, externalIDs)
	if err != nil {
		return nil, fmt.Errorf("query faces: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f models.Face
		if err := rows.Scan(&f.FaceID, &f.ExternalID, &f.Thumbnail, &f.Consent, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		faces[f.ExternalID] = f
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}

// ThumbnailByExternalID returns the stored thumbnail, or "" when the face or
// its thumbnail is missing.
func (s *PostgresStore) ThumbnailByExternalID(ctx context.Context, externalID string) (string, error) {
	var thumb string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(thumbnail, '') FROM faces WHERE external_id = $1`, externalID,
	).Scan(&thumb)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get thumbnail: %w", err)
	}
	return thumb, nil
}

func (s *PostgresStore) FaceExists(ctx context.Context, faceID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM faces WHERE face_id = $1)`, faceID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check face: %w", err)
	}
	return exists, nil
}

// --- Contacts ---

// CreateContact inserts a contact row. A face id that no longer exists is
// reported as models.ErrNotFound.
func (s *PostgresStore) CreateContact(ctx context.Context, c *models.Contact) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO user_details (face_id, name, phone_number) VALUES ($1, $2, $3) RETURNING id`,
		c.FaceID, c.Name, c.PhoneNumber,
	).Scan(&c.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return fmt.Errorf("create contact for face %d: %w", c.FaceID, models.ErrNotFound)
		}
		return fmt.Errorf("create contact: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListContacts(ctx context.Context, faceID int64) ([]models.Contact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, face_id, name, phone_number FROM user_details WHERE face_id = $1 ORDER BY id`, faceID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.FaceID, &c.Name, &c.PhoneNumber); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// --- Lifecycle ---

// ClearAll deletes every contact and face in one transaction.
func (s *PostgresStore) ClearAll(ctx context.Context) (int64, int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin clear: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	contacts, err := tx.Exec(ctx, `DELETE FROM user_details`)
	if err != nil {
		return 0, 0, fmt.Errorf("delete contacts: %w", err)
	}
	faces, err := tx.Exec(ctx, `DELETE FROM faces`)
	if err != nil {
		return 0, 0, fmt.Errorf("delete faces: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit clear: %w", err)
	}
	return faces.RowsAffected(), contacts.RowsAffected(), nil
}

// --- Events ---

func (s *PostgresStore) CreateEvent(ctx context.Context, ev *models.FaceEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	// Redelivered messages keep their id, so duplicates are ignored.
	err := s.pool.QueryRow(ctx,
		`INSERT INTO face_events (id, type, external_id, face_id, classification, score, message, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		 RETURNING created_at`,
		ev.ID, string(ev.Type), ev.ExternalID, ev.FaceID, ev.Classification, ev.Score, ev.Message, ev.Timestamp,
	).Scan(&ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, limit int) ([]models.FaceEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, type, external_id, face_id, classification, score, message, timestamp, created_at
		 FROM face_events ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.FaceEvent
	for rows.Next() {
		var ev models.FaceEvent
		var typ string
		if err := rows.Scan(&ev.ID, &typ, &ev.ExternalID, &ev.FaceID, &ev.Classification,
			&ev.Score, &ev.Message, &ev.Timestamp, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = models.FaceEventType(typ)
		events = append(events, ev)
	}
	return events, rows.Err()
}
