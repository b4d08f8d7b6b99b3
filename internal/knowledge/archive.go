package knowledge

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"quenito/internal/logging"
	"quenito/internal/types"
)

// Archive mirrors learning events into SQLite for offline analysis and the
// report command. The JSON document remains the source of truth; archive
// failures never interrupt a session.
type Archive struct {
	mu sync.Mutex
	db *sql.DB
}

// TypeStats is one row of the per-type intelligence report.
type TypeStats struct {
	QuestionType string
	Total        int
	Automated    int
	Manual       int
	Failed       int
	AvgConf      float64
	AvgExecTime  float64
}

// StrategyStats is one row of the per-strategy report.
type StrategyStats struct {
	Strategy    string
	ElementType string
	Total       int
	Successes   int
	AvgExecTime float64
}

// OpenArchive opens (or creates) the SQLite archive at path.
func OpenArchive(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive db: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS learning_events (
		id TEXT PRIMARY KEY,
		question_type TEXT NOT NULL,
		question_text TEXT NOT NULL,
		strategy TEXT DEFAULT '',
		element_type TEXT NOT NULL,
		confidence REAL NOT NULL,
		outcome TEXT NOT NULL,
		execution_time_sec REAL NOT NULL,
		recorded_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_type ON learning_events(question_type);
	CREATE INDEX IF NOT EXISTS idx_events_outcome ON learning_events(outcome);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}

	logging.Knowledge("learning archive ready at %s", path)
	return &Archive{db: db}, nil
}

// Record inserts one learning event. Duplicate IDs (replays) are ignored.
func (a *Archive) Record(ev types.LearningEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.db.Exec(`
		INSERT INTO learning_events
			(id, question_type, question_text, strategy, element_type, confidence, outcome, execution_time_sec, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, ev.ID, ev.QuestionType, ev.QuestionText, string(ev.Strategy), string(ev.ElementType),
		ev.Confidence, string(ev.Outcome), ev.ExecutionTime, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to archive event: %w", err)
	}
	return nil
}

// TypeReport aggregates outcomes per question type.
func (a *Archive) TypeReport() ([]TypeStats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.db.Query(`
		SELECT question_type,
		       COUNT(*),
		       SUM(CASE WHEN outcome = 'success' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN outcome = 'manual' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN outcome = 'failure' THEN 1 ELSE 0 END),
		       AVG(confidence),
		       AVG(execution_time_sec)
		FROM learning_events
		GROUP BY question_type
		ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query type report: %w", err)
	}
	defer rows.Close()

	var stats []TypeStats
	for rows.Next() {
		var s TypeStats
		if err := rows.Scan(&s.QuestionType, &s.Total, &s.Automated, &s.Manual, &s.Failed, &s.AvgConf, &s.AvgExecTime); err != nil {
			return nil, fmt.Errorf("failed to scan type report row: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// StrategyReport aggregates outcomes per (strategy, element) pair.
func (a *Archive) StrategyReport() ([]StrategyStats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.db.Query(`
		SELECT strategy,
		       element_type,
		       COUNT(*),
		       SUM(CASE WHEN outcome = 'success' THEN 1 ELSE 0 END),
		       AVG(execution_time_sec)
		FROM learning_events
		WHERE strategy != ''
		GROUP BY strategy, element_type
		ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategy report: %w", err)
	}
	defer rows.Close()

	var stats []StrategyStats
	for rows.Next() {
		var s StrategyStats
		if err := rows.Scan(&s.Strategy, &s.ElementType, &s.Total, &s.Successes, &s.AvgExecTime); err != nil {
			return nil, fmt.Errorf("failed to scan strategy report row: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.db.Close()
}
