package database

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"

	"saferide/go-backend/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

const uniqueViolation = "23505"

// Migrate applies the embedded goose migrations.
func Migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database for migrations: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if err := Migrate(dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	log.Info().Msg("PostgreSQL store initialized")
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) CreateUser(ctx context.Context, user *models.User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, name, vehicle_id, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		user.Email, user.Name, user.VehicleID, user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Postgres) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, vehicle_id, password_hash, created_at FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.VehicleID, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

func (s *Postgres) RecordTelemetry(ctx context.Context, rec models.Telemetry) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode telemetry: %w", err)
	}

	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO vehicles (vehicle_id, latest, updated_at) VALUES ($1, $2, now())
			 ON CONFLICT (vehicle_id) DO UPDATE SET latest = EXCLUDED.latest, updated_at = now()`,
			rec.VehicleID, payload,
		); err != nil {
			return fmt.Errorf("save latest telemetry: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO telemetry_history (vehicle_id, record) VALUES ($1, $2)`,
			rec.VehicleID, payload,
		); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM telemetry_history WHERE vehicle_id = $1 AND id NOT IN (
			     SELECT id FROM telemetry_history WHERE vehicle_id = $1 ORDER BY id DESC LIMIT $2)`,
			rec.VehicleID, HistoryLimit,
		); err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
		return nil
	})
}

func (s *Postgres) Latest(ctx context.Context, vehicleID string) (models.Telemetry, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT latest FROM vehicles WHERE vehicle_id = $1`, vehicleID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && payload == nil) {
		return models.Telemetry{}, ErrNotFound
	}
	if err != nil {
		return models.Telemetry{}, fmt.Errorf("select latest telemetry: %w", err)
	}

	var rec models.Telemetry
	if err := json.Unmarshal(payload, &rec); err != nil {
		return models.Telemetry{}, fmt.Errorf("decode latest telemetry: %w", err)
	}
	return rec, nil
}

func (s *Postgres) History(ctx context.Context, vehicleID string) ([]models.Telemetry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record FROM telemetry_history WHERE vehicle_id = $1 ORDER BY id`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	defer rows.Close()

	history := []models.Telemetry{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		var rec models.Telemetry
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
		history = append(history, rec)
	}
	return history, rows.Err()
}

func (s *Postgres) SetDriverStatus(ctx context.Context, vehicleID, status string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO vehicles (vehicle_id, driver_status) VALUES ($1, $2)
		 ON CONFLICT (vehicle_id) DO UPDATE SET driver_status = EXCLUDED.driver_status, updated_at = now()`,
		vehicleID, status)
	if err != nil {
		return fmt.Errorf("set driver status: %w", err)
	}
	return nil
}

func (s *Postgres) SetVehicleStatus(ctx context.Context, vehicleID, status string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO vehicles (vehicle_id, vehicle_status) VALUES ($1, $2)
		 ON CONFLICT (vehicle_id) DO UPDATE SET vehicle_status = EXCLUDED.vehicle_status, updated_at = now()`,
		vehicleID, status)
	if err != nil {
		return fmt.Errorf("set vehicle status: %w", err)
	}
	return nil
}

func (s *Postgres) Statuses(ctx context.Context, vehicleID string) (string, string, error) {
	var driver, vehicle string
	err := s.pool.QueryRow(ctx,
		`SELECT driver_status, vehicle_status FROM vehicles WHERE vehicle_id = $1`, vehicleID,
	).Scan(&driver, &vehicle)
	if errors.Is(err, pgx.ErrNoRows) {
		return unknownStatus, unknownStatus, nil
	}
	if err != nil {
		return "", "", fmt.Errorf("select statuses: %w", err)
	}
	return driver, vehicle, nil
}

func (s *Postgres) AddIncident(ctx context.Context, incident *models.Incident) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO incidents (vehicle_id, status, source, heart_rate, confidence, ts)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			incident.VehicleID, incident.Status, incident.Source, incident.HeartRate, incident.Confidence, incident.Timestamp,
		).Scan(&incident.ID)
		if err != nil {
			return fmt.Errorf("insert incident: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM incidents WHERE vehicle_id = $1 AND id NOT IN (
			     SELECT id FROM incidents WHERE vehicle_id = $1 ORDER BY id DESC LIMIT $2)`,
			incident.VehicleID, IncidentLimit,
		); err != nil {
			return fmt.Errorf("trim incidents: %w", err)
		}
		return nil
	})
}

func (s *Postgres) Incidents(ctx context.Context, vehicleID string) ([]models.Incident, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, vehicle_id, status, source, heart_rate, confidence, ts
		 FROM incidents WHERE vehicle_id = $1 ORDER BY id`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("select incidents: %w", err)
	}
	defer rows.Close()

	incidents := []models.Incident{}
	for rows.Next() {
		var inc models.Incident
		if err := rows.Scan(&inc.ID, &inc.VehicleID, &inc.Status, &inc.Source, &inc.HeartRate, &inc.Confidence, &inc.Timestamp); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}

func (s *Postgres) AddPoints(ctx context.Context, vehicleID string, points int) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx,
		`INSERT INTO vehicles (vehicle_id, points) VALUES ($1, $2)
		 ON CONFLICT (vehicle_id) DO UPDATE SET points = COALESCE(vehicles.points, 0) + EXCLUDED.points, updated_at = now()
		 RETURNING points`,
		vehicleID, points,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("add points: %w", err)
	}
	return total, nil
}

func (s *Postgres) Points(ctx context.Context, vehicleID string) (int, error) {
	var points *int
	err := s.pool.QueryRow(ctx, `SELECT points FROM vehicles WHERE vehicle_id = $1`, vehicleID).Scan(&points)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select points: %w", err)
	}
	if points == nil {
		return 0, nil
	}
	return *points, nil
}

func (s *Postgres) RedeemPoints(ctx context.Context, vehicleID string, points int) (int, error) {
	var balance int
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var current *int
		err := tx.QueryRow(ctx,
			`SELECT points FROM vehicles WHERE vehicle_id = $1 FOR UPDATE`, vehicleID,
		).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && current == nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("select points: %w", err)
		}
		if *current < points {
			balance = *current
			return ErrInsufficientPoints
		}
		return tx.QueryRow(ctx,
			`UPDATE vehicles SET points = points - $2, updated_at = now() WHERE vehicle_id = $1 RETURNING points`,
			vehicleID, points,
		).Scan(&balance)
	})
	return balance, err
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close() {
	s.pool.Close()
	log.Info().Msg("DB closed")
}
