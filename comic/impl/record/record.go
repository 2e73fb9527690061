package record

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	STATUS_TRANSLATED = "translated"
	STATUS_FAILED     = "failed"
)

type Run struct {
	ID             int64
	Input          string
	SourceLanguage string
	TargetLanguage string
	StartedAt      time.Time
}

// Page is the outcome of one page of a run.
type Page struct {
	Index int
	// E.g., 001.jpg
	Name string
	// E.g., out/0000.png
	Output string
	// STATUS_TRANSLATED or STATUS_FAILED.
	Status    string
	Bubbles   int
	Regions   int
	Overflows int
	Error     string
}

// Ledger stores every run and its pages in SQLite.
type Ledger struct {
	conn *sql.DB
	mu   sync.Mutex
}

func New(path string) (*Ledger, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	ledger := &Ledger{conn: conn}
	if err := ledger.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate ledger: %w", err)
	}
	return ledger, nil
}

func (l *Ledger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		input TEXT NOT NULL,
		source_language TEXT NOT NULL,
		target_language TEXT NOT NULL,
		started_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		page_index INTEGER NOT NULL,
		name TEXT NOT NULL,
		output TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		bubbles INTEGER DEFAULT 0,
		regions INTEGER DEFAULT 0,
		overflows INTEGER DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		UNIQUE (run_id, page_index),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run_id ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_status ON pages(status);
	`

	_, err := l.conn.Exec(schema)
	return err
}

// StartRun inserts a run and returns its id.
func (l *Ledger) StartRun(ctx context.Context, run Run) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	result, err := l.conn.ExecContext(ctx,
		`INSERT INTO runs (input, source_language, target_language, started_at) VALUES (?, ?, ?, ?)`,
		run.Input, run.SourceLanguage, run.TargetLanguage, run.StartedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}
	return id, nil
}

// SavePage stores the outcome of a page, replacing an earlier outcome of the same page.
func (l *Ledger) SavePage(ctx context.Context, runID int64, page Page) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.conn.ExecContext(ctx, `
		INSERT INTO pages (run_id, page_index, name, output, status, bubbles, regions, overflows, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, page_index) DO UPDATE SET
			name = excluded.name,
			output = excluded.output,
			status = excluded.status,
			bubbles = excluded.bubbles,
			regions = excluded.regions,
			overflows = excluded.overflows,
			error = excluded.error`,
		runID, page.Index, page.Name, page.Output, page.Status, page.Bubbles, page.Regions, page.Overflows, page.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save page %d: %w", page.Index, err)
	}
	return nil
}

func (l *Ledger) Close() error {
	return l.conn.Close()
}
