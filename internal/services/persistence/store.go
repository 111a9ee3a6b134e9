package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
	"github.com/LeonardoBeccarini/cropwater/internal/model/messages"
)

// RunRecord is one row of run history.
type RunRecord struct {
	RunID     string                 `json:"run_id"`
	FieldID   string                 `json:"field_id"`
	Crop      string                 `json:"crop"`
	Status    string                 `json:"status"`
	Reason    string                 `json:"reason,omitempty"`
	Plan      string                 `json:"plan,omitempty"`
	Start     *time.Time             `json:"start,omitempty"`
	End       *time.Time             `json:"end,omitempty"`
	Days      int                    `json:"days"`
	Summary   *entities.SeasonTotals `json:"summary,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// RecordFromEvent keeps the identifiers and totals; the daily table lives in Influx.
func RecordFromEvent(ev messages.SimulationCompletedEvent) RunRecord {
	r := RunRecord{
		RunID:     ev.RunID,
		FieldID:   ev.FieldID,
		Crop:      ev.Crop,
		Status:    ev.Status,
		Reason:    ev.Reason,
		Plan:      string(ev.Plan),
		Days:      len(ev.Daily),
		CreatedAt: ev.Timestamp,
	}
	if !ev.Start.IsZero() {
		s := ev.Start
		r.Start = &s
	}
	if !ev.End.IsZero() {
		e := ev.End
		r.End = &e
	}
	if ev.Summary != nil {
		s := ev.Summary.Rounded()
		r.Summary = &s
	}
	return r
}

type RunStore interface {
	SaveRun(ctx context.Context, r RunRecord) error
	History(ctx context.Context, fieldID string, limit int) ([]RunRecord, error)
}

type MySQLConfig struct {
	User     string
	Password string
	Host     string // host:port
	DBName   string
}

func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&charset=utf8mb4", c.User, c.Password, c.Host, c.DBName)
}

type MySQLStore struct {
	db *sql.DB
}

var _ RunStore = (*MySQLStore)(nil)

// OpenMySQL connects, pings and applies pending migrations.
func OpenMySQL(ctx context.Context, dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) Close() error { return s.db.Close() }

func (s *MySQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

type Migration struct {
	Name string
	SQL  string
}

func migrations() []Migration {
	return []Migration{
		{
			Name: "001_create_simulation_runs",
			SQL: `
			CREATE TABLE IF NOT EXISTS simulation_runs (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				run_id VARCHAR(64) NOT NULL UNIQUE,
				field_id VARCHAR(128) NOT NULL,
				crop VARCHAR(64) NOT NULL,
				status VARCHAR(8) NOT NULL,
				reason TEXT,
				plan VARCHAR(32),
				season_start DATE NULL,
				season_end DATE NULL,
				days INT NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL,
				INDEX idx_field_created (field_id, created_at)
			)
			`,
		},
		{
			Name: "002_create_simulation_totals",
			SQL: `
			CREATE TABLE IF NOT EXISTS simulation_totals (
				run_id VARCHAR(64) PRIMARY KEY,
				etref DOUBLE, etc DOUBLE, etcadj DOUBLE,
				e DOUBLE, t DOUBLE, rain DOUBLE,
				irrig DOUBLE, irrig_count INT, irrloss DOUBLE,
				runoff DOUBLE, dp DOUBLE,
				FOREIGN KEY (run_id) REFERENCES simulation_runs(run_id) ON DELETE CASCADE
			)
			`,
		},
	}
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS migrations (
		id INT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE,
		executed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	for _, m := range migrations() {
		var count int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM migrations WHERE name = ?", m.Name).Scan(&count); err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
		if count > 0 {
			continue
		}
		log.Printf("persistence: running migration %s", m.Name)
		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO migrations (name) VALUES (?)", m.Name); err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
	}
	return nil
}

// SaveRun inserts the run and its totals in one transaction. A run_id
// already stored is left untouched.
func (s *MySQLStore) SaveRun(ctx context.Context, r RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT IGNORE INTO simulation_runs
			(run_id, field_id, crop, status, reason, plan, season_start, season_end, days, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.FieldID, r.Crop, r.Status, r.Reason, r.Plan, r.Start, r.End, r.Days, r.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	if t := r.Summary; t != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO simulation_totals
				(run_id, etref, etc, etcadj, e, t, rain, irrig, irrig_count, irrloss, runoff, dp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, t.ETref, t.ETc, t.ETcadj, t.E, t.T, t.Rain, t.Irrig, t.IrrigCount, t.IrrLoss, t.Runoff, t.DP); err != nil {
			return fmt.Errorf("insert totals %s: %w", r.RunID, err)
		}
	}
	return tx.Commit()
}

// History returns the newest runs first; an empty fieldID lists all fields.
func (s *MySQLStore) History(ctx context.Context, fieldID string, limit int) ([]RunRecord, error) {
	query := `
		SELECT r.run_id, r.field_id, r.crop, r.status, COALESCE(r.reason, ''), COALESCE(r.plan, ''),
			r.season_start, r.season_end, r.days, r.created_at,
			t.etref, t.etc, t.etcadj, t.e, t.t, t.rain, t.irrig, t.irrig_count, t.irrloss, t.runoff, t.dp
		FROM simulation_runs r
		LEFT JOIN simulation_totals t ON t.run_id = r.run_id`
	args := []interface{}{}
	if fieldID != "" {
		query += " WHERE r.field_id = ?"
		args = append(args, fieldID)
	}
	query += " ORDER BY r.created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			r          RunRecord
			start, end sql.NullTime
			f          [10]sql.NullFloat64
			count      sql.NullInt64
		)
		if err := rows.Scan(&r.RunID, &r.FieldID, &r.Crop, &r.Status, &r.Reason, &r.Plan,
			&start, &end, &r.Days, &r.CreatedAt,
			&f[0], &f[1], &f[2], &f[3], &f[4], &f[5], &f[6], &count, &f[7], &f[8], &f[9]); err != nil {
			return nil, err
		}
		if start.Valid {
			r.Start = &start.Time
		}
		if end.Valid {
			r.End = &end.Time
		}
		if f[0].Valid {
			r.Summary = &entities.SeasonTotals{
				ETref: f[0].Float64, ETc: f[1].Float64, ETcadj: f[2].Float64,
				E: f[3].Float64, T: f[4].Float64, Rain: f[5].Float64, Irrig: f[6].Float64,
				IrrigCount: int(count.Int64), IrrLoss: f[7].Float64,
				Runoff: f[8].Float64, DP: f[9].Float64,
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
