package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/phylony/mar-library/internal/config"
	"github.com/phylony/mar-library/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
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

// --- Surfaces ---

func (s *PostgresStore) RecordSurface(ctx context.Context, sf *models.Surface) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO surfaces (id, x, y, a, b, angle) VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET x = $2, y = $3, a = $4, b = $5, angle = $6, released_at = NULL
		 RETURNING created_at`,
		sf.ID, sf.X, sf.Y, sf.A, sf.B, sf.Angle,
	).Scan(&sf.CreatedAt)
}

func (s *PostgresStore) ReleaseSurface(ctx context.Context, id int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE surfaces SET released_at = now() WHERE id = $1 AND released_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("release surface: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("surface not found")
	}
	return nil
}

func (s *PostgresStore) ListSurfaces(ctx context.Context, includeReleased bool) ([]models.Surface, error) {
	query := `SELECT id, x, y, a, b, angle, created_at, released_at FROM surfaces`
	if !includeReleased {
		query += ` WHERE released_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list surfaces: %w", err)
	}
	defer rows.Close()

	var surfaces []models.Surface
	for rows.Next() {
		var sf models.Surface
		if err := rows.Scan(&sf.ID, &sf.X, &sf.Y, &sf.A, &sf.B, &sf.Angle, &sf.CreatedAt, &sf.ReleasedAt); err != nil {
			return nil, fmt.Errorf("scan surface: %w", err)
		}
		surfaces = append(surfaces, sf)
	}
	return surfaces, nil
}

// --- Events ---

func (s *PostgresStore) InsertEvent(ctx context.Context, ev *models.TrackEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.CreatedAt = time.Now()
	var vec *pgvector.Vector
	if len(ev.Descriptor) > 0 {
		v := pgvector.NewVector(ev.Descriptor)
		vec = &v
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO track_events (id, surface_id, timestamp, status, m11, m12, m21, m22, tx, ty, matches, descriptor, frame_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.SurfaceID, ev.Timestamp, ev.Status,
		ev.M11, ev.M12, ev.M21, ev.M22, ev.TX, ev.TY,
		ev.Matches, vec, ev.FrameKey, ev.CreatedAt)
	return err
}

func (s *PostgresStore) QueryEvents(ctx context.Context, surfaceID *int, from, to *time.Time, status string, limit, offset int) ([]models.TrackEvent, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	baseWhere := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	if surfaceID != nil {
		baseWhere += fmt.Sprintf(" AND surface_id = $%d", argIdx)
		args = append(args, *surfaceID)
		argIdx++
	}
	if from != nil {
		baseWhere += fmt.Sprintf(" AND timestamp >= $%d", argIdx)
		args = append(args, *from)
		argIdx++
	}
	if to != nil {
		baseWhere += fmt.Sprintf(" AND timestamp <= $%d", argIdx)
		args = append(args, *to)
		argIdx++
	}
	if status != "" {
		baseWhere += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM track_events " + baseWhere
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT id, surface_id, timestamp, status, m11, m12, m21, m22, tx, ty, matches, frame_key, created_at
		 FROM track_events %s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`,
		baseWhere, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []models.TrackEvent
	for rows.Next() {
		var ev models.TrackEvent
		if err := rows.Scan(&ev.ID, &ev.SurfaceID, &ev.Timestamp, &ev.Status,
			&ev.M11, &ev.M12, &ev.M21, &ev.M22, &ev.TX, &ev.TY,
			&ev.Matches, &ev.FrameKey, &ev.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, total, nil
}

// GetEvent returns a single event by ID.
func (s *PostgresStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.TrackEvent, error) {
	var ev models.TrackEvent
	err := s.pool.QueryRow(ctx,
		`SELECT id, surface_id, timestamp, status, m11, m12, m21, m22, tx, ty, matches, frame_key, created_at
		 FROM track_events WHERE id = $1`, id).
		Scan(&ev.ID, &ev.SurfaceID, &ev.Timestamp, &ev.Status,
			&ev.M11, &ev.M12, &ev.M21, &ev.M22, &ev.TX, &ev.TY,
			&ev.Matches, &ev.FrameKey, &ev.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &ev, nil
}

type DescriptorMatch struct {
	EventID   uuid.UUID `json:"event_id"`
	SurfaceID int       `json:"surface_id"`
	Timestamp time.Time `json:"timestamp"`
	Distance  float32   `json:"distance"`
}

// SearchEventsByDescriptor finds events whose stored descriptor centroid
// is closest to the query vector, using pgvector L1 distance to match
// the matcher's metric.
func (s *PostgresStore) SearchEventsByDescriptor(ctx context.Context, descriptor []float32, limit int) ([]DescriptorMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	vec := pgvector.NewVector(descriptor)

	rows, err := s.pool.Query(ctx,
		`SELECT id, surface_id, timestamp, descriptor <+> $1 AS distance
		 FROM track_events
		 WHERE descriptor IS NOT NULL
		 ORDER BY descriptor <+> $1
		 LIMIT $2`, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	defer rows.Close()

	var matches []DescriptorMatch
	for rows.Next() {
		var m DescriptorMatch
		if err := rows.Scan(&m.EventID, &m.SurfaceID, &m.Timestamp, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan descriptor match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}
