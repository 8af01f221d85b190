// Package commitlog journals the committed root edges of a trie in a
// local SQLite database. The node store only holds content-addressed
// objects; the log is what remembers which root is current and how it
// evolved, so a process can reopen its trie after a restart.
package commitlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // cgo-free SQLite driver

	"github.com/LeJamon/gotrie/internal/core/trie"
	"github.com/LeJamon/gotrie/internal/types"
)

var (
	// ErrEmpty indicates the log holds no commits yet
	ErrEmpty = errors.New("commit log is empty")

	// ErrClosed indicates the log has been closed
	ErrClosed = errors.New("commit log is closed")

	// ErrSeqNotFound indicates no commit exists with the requested sequence
	ErrSeqNotFound = errors.New("commit sequence not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS commits (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	root_target     BLOB NOT NULL,
	root_label      BLOB NOT NULL,
	root_label_bits INTEGER NOT NULL,
	created_at      INTEGER NOT NULL
);
`

// Commit is one journaled root.
type Commit struct {
	Seq       uint64
	Root      trie.Edge
	CreatedAt time.Time
}

// RootHash returns the commitment hash of the journaled root edge.
func (c Commit) RootHash() types.Hash256 {
	return c.Root.Hash()
}

// Log is an append-only journal of trie roots backed by SQLite.
type Log struct {
	db *sql.DB
}

// Open opens (and if needed creates) a commit log at the given path.
// The path ":memory:" yields an ephemeral log for tests.
func Open(path string) (*Log, error) {
	if path == "" {
		return nil, errors.New("commit log path must be specified")
	}

	dsn := path
	if path != ":memory:" {
		// WAL keeps appends cheap and lets readers proceed during writes.
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open commit log at %s: %w", path, err)
	}

	// modernc/sqlite serializes through a single connection; more would
	// just contend on the database lock.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize commit log schema: %w", err)
	}

	return &Log{db: db}, nil
}

// Append journals a new root edge and returns its sequence number.
func (l *Log) Append(ctx context.Context, root trie.Edge) (uint64, error) {
	if l.db == nil {
		return 0, ErrClosed
	}

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO commits (root_target, root_label, root_label_bits, created_at) VALUES (?, ?, ?, ?)`,
		root.Target[:],
		root.Label.Data[:],
		root.Label.Length,
		time.Now().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append commit: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read commit sequence: %w", err)
	}

	return uint64(seq), nil
}

// Latest returns the most recent commit.
func (l *Log) Latest(ctx context.Context) (*Commit, error) {
	if l.db == nil {
		return nil, ErrClosed
	}

	row := l.db.QueryRowContext(ctx,
		`SELECT seq, root_target, root_label, root_label_bits, created_at
		 FROM commits ORDER BY seq DESC LIMIT 1`)

	commit, err := scanCommit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmpty
	}
	return commit, err
}

// Get returns the commit with the given sequence number.
func (l *Log) Get(ctx context.Context, seq uint64) (*Commit, error) {
	if l.db == nil {
		return nil, ErrClosed
	}

	row := l.db.QueryRowContext(ctx,
		`SELECT seq, root_target, root_label, root_label_bits, created_at
		 FROM commits WHERE seq = ?`, seq)

	commit, err := scanCommit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrSeqNotFound, seq)
	}
	return commit, err
}

// History returns up to limit commits, newest first. A limit of zero
// returns the full history.
func (l *Log) History(ctx context.Context, limit int) ([]Commit, error) {
	if l.db == nil {
		return nil, ErrClosed
	}

	query := `SELECT seq, root_target, root_label, root_label_bits, created_at
	          FROM commits ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query commit history: %w", err)
	}
	defer rows.Close()

	var commits []Commit
	for rows.Next() {
		commit, err := scanCommit(rows)
		if err != nil {
			return nil, err
		}
		commits = append(commits, *commit)
	}

	return commits, rows.Err()
}

// Len returns the number of journaled commits.
func (l *Log) Len(ctx context.Context) (int, error) {
	if l.db == nil {
		return 0, ErrClosed
	}

	var count int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commits`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count commits: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCommit(s scanner) (*Commit, error) {
	var (
		seq          uint64
		rootTarget   []byte
		labelData    []byte
		labelBits    int
		createdNanos int64
	)

	if err := s.Scan(&seq, &rootTarget, &labelData, &labelBits, &createdNanos); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan commit: %w", err)
	}

	target, err := types.Hash256FromBytes(rootTarget)
	if err != nil {
		return nil, fmt.Errorf("corrupt commit row %d: %w", seq, err)
	}
	if len(labelData) != 32 {
		return nil, fmt.Errorf("corrupt commit row %d: bad label size", seq)
	}

	label, err := trie.NewLabel([32]byte(labelData), labelBits)
	if err != nil {
		return nil, fmt.Errorf("corrupt commit row %d: %w", seq, err)
	}

	return &Commit{
		Seq:       seq,
		Root:      trie.Edge{Label: label, Target: target},
		CreatedAt: time.Unix(0, createdNanos),
	}, nil
}
