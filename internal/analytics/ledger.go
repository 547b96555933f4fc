// Package analytics records completed generations and summarizes usage.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const (
	maxPromptLen = 500
	topN         = 5
	timeLayout   = "2006-01-02T15:04:05.000Z"
)

// Entry is one completed generation.
type Entry struct {
	CreatedAt time.Time
	Model     string
	Width     int
	Height    int
	Steps     int
	CFGScale  float64
	Sampler   string
	BatchSize int
	Duration  time.Duration
	Seed      int64
	Prompt    string
}

// Count pairs a name with how often it was used.
type Count struct {
	Name  string
	Count int
}

// Totals aggregates every recorded generation.
type Totals struct {
	Generations      int
	Images           int
	Pixels           int64
	Steps            int64
	Duration         time.Duration
	AvgSecondsPerImg float64
	TopModels        []Count
	TopSamplers      []Count
}

// Day is one row of the daily breakdown.
type Day struct {
	Date        string
	Generations int
	Images      int
	Duration    time.Duration
}

// Ledger writes to the generations table.
type Ledger struct {
	db  *sql.DB
	own bool
	now func() time.Time
}

// New attaches a ledger to an open database, creating its table if needed.
func New(db *sql.DB) (*Ledger, error) {
	l := &Ledger{db: db, now: time.Now}
	if err := l.init(); err != nil {
		return nil, fmt.Errorf("init generations table: %w", err)
	}
	return l, nil
}

// Open opens a dedicated database file for the ledger.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	l, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	l.own = true
	return l, nil
}

func (l *Ledger) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS generations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TEXT NOT NULL,
		model TEXT,
		width INTEGER,
		height INTEGER,
		steps INTEGER,
		cfg_scale REAL,
		sampler TEXT,
		batch_size INTEGER DEFAULT 1,
		duration_ms INTEGER,
		seed INTEGER,
		prompt TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_generations_created ON generations(created_at);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Close closes the database when the ledger opened it.
func (l *Ledger) Close() error {
	if !l.own {
		return nil
	}
	return l.db.Close()
}

// Record appends e. A zero CreatedAt means now.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now()
	}
	if e.BatchSize <= 0 {
		e.BatchSize = 1
	}
	prompt := e.Prompt
	if r := []rune(prompt); len(r) > maxPromptLen {
		prompt = string(r[:maxPromptLen])
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO generations
		(created_at, model, width, height, steps, cfg_scale, sampler, batch_size, duration_ms, seed, prompt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CreatedAt.UTC().Format(timeLayout), e.Model, e.Width, e.Height, e.Steps, e.CFGScale,
		e.Sampler, e.BatchSize, e.Duration.Milliseconds(), e.Seed, prompt)
	if err != nil {
		return fmt.Errorf("record generation: %w", err)
	}
	return nil
}

// Totals summarizes the whole ledger.
func (l *Ledger) Totals(ctx context.Context) (Totals, error) {
	var (
		t          Totals
		durationMS int64
	)
	err := l.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(batch_size), 0),
			COALESCE(SUM(width * height * batch_size), 0),
			COALESCE(SUM(steps * batch_size), 0),
			COALESCE(SUM(duration_ms), 0)
		FROM generations`).Scan(&t.Generations, &t.Images, &t.Pixels, &t.Steps, &durationMS)
	if err != nil {
		return Totals{}, fmt.Errorf("totals: %w", err)
	}
	t.Duration = time.Duration(durationMS) * time.Millisecond
	if t.Images > 0 {
		t.AvgSecondsPerImg = t.Duration.Seconds() / float64(t.Images)
	}

	if t.TopModels, err = l.top(ctx, "model"); err != nil {
		return Totals{}, err
	}
	if t.TopSamplers, err = l.top(ctx, "sampler"); err != nil {
		return Totals{}, err
	}
	return t, nil
}

// column is one of a fixed set of names, never user input.
func (l *Ledger) top(ctx context.Context, column string) ([]Count, error) {
	query := fmt.Sprintf(`
		SELECT %[1]s, COUNT(*) AS n
		FROM generations
		WHERE %[1]s IS NOT NULL AND %[1]s != ''
		GROUP BY %[1]s
		ORDER BY n DESC, %[1]s ASC
		LIMIT %[2]d`, column, topN)
	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("top %s: %w", column, err)
	}
	defer rows.Close()

	var out []Count
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Recent returns the newest entries first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT created_at, model, width, height, steps, cfg_scale, sampler, batch_size, duration_ms, seed, prompt
		FROM generations
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent generations: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			created    string
			model      sql.NullString
			sampler    sql.NullString
			prompt     sql.NullString
			durationMS int64
		)
		if err := rows.Scan(&created, &model, &e.Width, &e.Height, &e.Steps, &e.CFGScale,
			&sampler, &e.BatchSize, &durationMS, &e.Seed, &prompt); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		e.Model = model.String
		e.Sampler = sampler.String
		e.Prompt = prompt.String
		e.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// Daily returns per-day totals for the last days days, oldest first.
func (l *Ledger) Daily(ctx context.Context, days int) ([]Day, error) {
	if days <= 0 {
		days = 7
	}
	since := l.now().UTC().AddDate(0, 0, -days).Format("2006-01-02")
	rows, err := l.db.QueryContext(ctx, `
		SELECT
			substr(created_at, 1, 10) AS day,
			COUNT(*),
			COALESCE(SUM(batch_size), 0),
			COALESCE(SUM(duration_ms), 0)
		FROM generations
		WHERE substr(created_at, 1, 10) >= ?
		GROUP BY day
		ORDER BY day ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	defer rows.Close()

	var out []Day
	for rows.Next() {
		var (
			d          Day
			durationMS int64
		)
		if err := rows.Scan(&d.Date, &d.Generations, &d.Images, &durationMS); err != nil {
			return nil, err
		}
		d.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, d)
	}
	return out, rows.Err()
}
