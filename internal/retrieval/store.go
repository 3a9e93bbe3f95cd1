package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const documentSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	content TEXT NOT NULL
);
`

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// Store is a SQLite-backed document store scored by term overlap.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the knowledge base at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create knowledge base directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge base: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(documentSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create document schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts one document.
func (s *Store) Add(ctx context.Context, source, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (source, content) VALUES (?, ?)`, source, content)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Retrieve ranks documents by the fraction of query terms they contain.
// Documents sharing no terms with the query are omitted.
func (s *Store) Retrieve(ctx context.Context, query string, topK int) ([]Result, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT source, content FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Result
	for rows.Next() {
		var source, content string
		if err := rows.Scan(&source, &content); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		score := overlap(terms, content)
		if score > 0 {
			results = append(results, Result{Content: content, Source: source, Score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// overlap scores content by the fraction of query terms present in it.
func overlap(terms []string, content string) float64 {
	haystack := strings.ToLower(content)

	var hits int
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}
