// Package journal keeps an in-memory DuckDB record of every rendered plan
// and its per-path terrain breakdown. Nothing is written to disk.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joeblew999/plat-mission/internal/db"
	"github.com/joeblew999/plat-mission/internal/mission"
	"github.com/joeblew999/plat-mission/internal/planner"
	"github.com/joeblew999/plat-mission/internal/service"
)

var schema = []string{
	`CREATE SEQUENCE IF NOT EXISTS plan_ids START 1`,
	`CREATE TABLE IF NOT EXISTS plans (
		id           BIGINT PRIMARY KEY DEFAULT nextval('plan_ids'),
		workspace    VARCHAR NOT NULL,
		rendered_at  TIMESTAMP NOT NULL,
		strategy     VARCHAR NOT NULL,
		vehicles     VARCHAR NOT NULL,
		path_count   INTEGER NOT NULL,
		optimal_path VARCHAR NOT NULL,
		anchor_lat   DOUBLE,
		anchor_lon   DOUBLE
	)`,
	`CREATE TABLE IF NOT EXISTS path_terrain (
		plan_id    BIGINT NOT NULL,
		path_index INTEGER NOT NULL,
		path_name  VARCHAR NOT NULL,
		color      VARCHAR NOT NULL,
		length_km  DOUBLE NOT NULL,
		terrain    VARCHAR NOT NULL,
		percent    INTEGER NOT NULL
	)`,
}

// Entry is one recorded plan.
type Entry struct {
	ID          int64     `json:"id" doc:"Journal entry id"`
	Workspace   string    `json:"workspace" doc:"Workspace that rendered the plan"`
	RenderedAt  time.Time `json:"renderedAt" doc:"When the plan was drawn"`
	Strategy    string    `json:"strategy" doc:"Strategy name"`
	Vehicles    []string  `json:"vehicles" doc:"Selected vehicle ids"`
	PathCount   int       `json:"pathCount" doc:"Number of candidate paths"`
	OptimalPath string    `json:"optimalPath,omitempty" doc:"Recommended path, if any"`
	AnchorLat   *float64  `json:"anchorLat,omitempty" doc:"Overlay anchor latitude"`
	AnchorLon   *float64  `json:"anchorLon,omitempty" doc:"Overlay anchor longitude"`
}

// Journal records plans in DuckDB.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens a DuckDB database at dsn and creates the journal tables. An
// empty dsn is an in-memory database.
func Open(dsn string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx := context.Background()
	conn, err := db.Open(ctx, db.Config{DSN: dsn, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	if err := db.Exec(ctx, conn, schema...); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}
	return &Journal{db: conn, logger: logger}, nil
}

// DB returns the underlying database for read queries.
func (j *Journal) DB() *sql.DB { return j.db }

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

// Record stores a plan and its terrain breakdown, returning the entry id.
func (j *Journal) Record(ctx context.Context, workspace string, plan *planner.Plan) (int64, error) {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("journal: begin: %w", err)
	}
	defer tx.Rollback()

	var (
		strategy, optimal string
		lat, lon          sql.NullFloat64
	)
	if plan.Overlay != nil {
		strategy = plan.Overlay.Strategy
		lat = sql.NullFloat64{Float64: plan.Overlay.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: plan.Overlay.Lon, Valid: true}
	} else {
		strategy = plan.Form.Get(mission.FieldStrategy)
	}
	if plan.Response != nil && plan.Response.OptimalSet != nil {
		optimal = string(plan.Response.OptimalSet.Path)
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO plans (workspace, rendered_at, strategy, vehicles, path_count, optimal_path, anchor_lat, anchor_lon)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		workspace, plan.RenderedAt.UTC(), strategy, strings.Join(plan.Form.Vehicles, ","),
		len(plan.Paths), optimal, lat, lon,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("journal: insert plan: %w", err)
	}

	for i, p := range plan.Paths {
		for _, l := range p.Labels {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO path_terrain (plan_id, path_index, path_name, color, length_km, terrain, percent)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				id, i, p.Name, p.Color, p.LengthKm, l.Label, l.Percent,
			)
			if err != nil {
				return 0, fmt.Errorf("journal: insert terrain: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("journal: commit: %w", err)
	}
	return id, nil
}

// List returns entries ordered by id and the total entry count.
func (j *Journal) List(ctx context.Context, offset, limit int) ([]Entry, int, error) {
	var total int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plans`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("journal: count: %w", err)
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, workspace, rendered_at, strategy, vehicles, path_count, optimal_path, anchor_lat, anchor_lon
		FROM plans ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e        Entry
			vehicles string
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&e.ID, &e.Workspace, &e.RenderedAt, &e.Strategy, &vehicles,
			&e.PathCount, &e.OptimalPath, &lat, &lon); err != nil {
			return nil, 0, fmt.Errorf("journal: scan: %w", err)
		}
		e.Vehicles = []string{}
		if vehicles != "" {
			e.Vehicles = strings.Split(vehicles, ",")
		}
		if lat.Valid && lon.Valid {
			e.AnchorLat, e.AnchorLon = &lat.Float64, &lon.Float64
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("journal: list: %w", err)
	}
	return entries, total, nil
}

// Run records every rendered plan published on bus until ctx is done.
func (j *Journal) Run(ctx context.Context, bus *service.EventBus) error {
	events := bus.Subscribe()
	defer bus.Unsubscribe(events)

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			if e.Resource != service.ResourcePlans || e.Action != service.ActionRendered || e.Plan == nil {
				continue
			}
			id, err := j.Record(ctx, e.ID, e.Plan)
			if err != nil {
				j.logger.Error("journal plan", "workspace", e.ID, "error", err)
				continue
			}
			j.logger.Debug("journaled plan", "id", id, "workspace", e.ID, "paths", len(e.Plan.Paths))
		}
	}
}
