package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"lucidodm/src/helpers"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps each collection in its own table of BSON encoded documents.
// Filtering happens in process with the same evaluator as the memory store.
type SQLiteStore struct {
	db      *sql.DB
	factory DocumentFactory
	logger  *zap.SugaredLogger

	mu     sync.Mutex
	tables map[string]bool
}

type sqliteRow struct {
	seq int64
	doc bson.M
}

func NewSQLiteStore(path string, newID helpers.IDGenerator, logger *zap.SugaredLogger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database %s: %w", path, err)
	}

	logger.Infow("sqlite store opened", "path", path)
	return &SQLiteStore{
		db:      db,
		factory: NewDocumentFactory(newID),
		logger:  logger,
		tables:  make(map[string]bool),
	}, nil
}

func quoteTable(name string) string {
	return `"` + name + `"`
}

func (s *SQLiteStore) ensureTable(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tables[collection] {
		return nil
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		body BLOB NOT NULL
	)`, quoteTable(collection))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create table for collection %s: %w", collection, err)
	}
	s.tables[collection] = true
	return nil
}

func (s *SQLiteStore) tableExists(ctx context.Context, collection string) (bool, error) {
	s.mu.Lock()
	known := s.tables[collection]
	s.mu.Unlock()
	if known {
		return true, nil
	}

	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, collection).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to inspect collection %s: %w", collection, err)
	}

	s.mu.Lock()
	s.tables[collection] = true
	s.mu.Unlock()
	return true, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (s *SQLiteStore) scan(ctx context.Context, q queryer, collection string, where *WhereGroup) ([]sqliteRow, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`SELECT seq, body FROM %s ORDER BY seq`, quoteTable(collection)))
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", collection, err)
	}
	defer rows.Close()

	var out []sqliteRow
	for rows.Next() {
		var seq int64
		var body []byte
		if err := rows.Scan(&seq, &body); err != nil {
			return nil, fmt.Errorf("failed to scan collection %s: %w", collection, err)
		}
		doc, err := helpers.DecodeBSON(body)
		if err != nil {
			return nil, err
		}
		doc = normalizeDecoded(doc)
		if EvaluateWhereClause(doc, where) {
			out = append(out, sqliteRow{seq: seq, doc: doc})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collection %s: %w", collection, err)
	}
	return out, nil
}

func (s *SQLiteStore) Find(ctx context.Context, collection string, where *WhereGroup, opts *FindOptions) ([]bson.M, error) {
	if err := validateCollectionName(collection); err != nil {
		return nil, err
	}
	exists, err := s.tableExists(ctx, collection)
	if err != nil || !exists {
		return []bson.M{}, err
	}

	matched, err := s.scan(ctx, s.db, collection, where)
	if err != nil {
		return nil, err
	}
	docs := make([]bson.M, len(matched))
	for i, r := range matched {
		docs[i] = r.doc
	}
	return applyFindOptions(docs, opts), nil
}

func (s *SQLiteStore) FindOne(ctx context.Context, collection string, where *WhereGroup, opts *FindOptions) (bson.M, error) {
	return findOne(ctx, s, collection, where, opts)
}

func (s *SQLiteStore) Insert(ctx context.Context, collection string, docs ...bson.M) ([]interface{}, error) {
	if err := validateCollectionName(collection); err != nil {
		return nil, err
	}
	if err := s.ensureTable(ctx, collection); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin insert into %s: %w", collection, err)
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`INSERT INTO %s (id, body) VALUES (?, ?)`, quoteTable(collection))
	ids := make([]interface{}, 0, len(docs))
	for _, d := range docs {
		doc := s.factory.NewDocument(d)
		body, err := helpers.EncodeBSON(doc)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, stmt, helpers.NormalizeKey(doc["_id"]), body); err != nil {
			return nil, fmt.Errorf("failed to insert into %s: %w", collection, err)
		}
		ids = append(ids, doc["_id"])
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit insert into %s: %w", collection, err)
	}
	return ids, nil
}

func (s *SQLiteStore) Update(ctx context.Context, collection string, where *WhereGroup, patch Patch) (int64, error) {
	if err := validateCollectionName(collection); err != nil {
		return 0, err
	}
	exists, err := s.tableExists(ctx, collection)
	if err != nil || !exists {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin update of %s: %w", collection, err)
	}
	defer tx.Rollback()

	matched, err := s.scan(ctx, tx, collection, where)
	if err != nil {
		return 0, err
	}

	stmt := fmt.Sprintf(`UPDATE %s SET body = ? WHERE seq = ?`, quoteTable(collection))
	for _, r := range matched {
		applyPatch(r.doc, patch)
		body, err := helpers.EncodeBSON(r.doc)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, stmt, body, r.seq); err != nil {
			return 0, fmt.Errorf("failed to update %s: %w", collection, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit update of %s: %w", collection, err)
	}
	return int64(len(matched)), nil
}

func (s *SQLiteStore) Delete(ctx context.Context, collection string, where *WhereGroup) (int64, error) {
	if err := validateCollectionName(collection); err != nil {
		return 0, err
	}
	exists, err := s.tableExists(ctx, collection)
	if err != nil || !exists {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin delete from %s: %w", collection, err)
	}
	defer tx.Rollback()

	matched, err := s.scan(ctx, tx, collection, where)
	if err != nil {
		return 0, err
	}

	stmt := fmt.Sprintf(`DELETE FROM %s WHERE seq = ?`, quoteTable(collection))
	for _, r := range matched {
		if _, err := tx.ExecContext(ctx, stmt, r.seq); err != nil {
			return 0, fmt.Errorf("failed to delete from %s: %w", collection, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete from %s: %w", collection, err)
	}
	return int64(len(matched)), nil
}

func (s *SQLiteStore) Count(ctx context.Context, collection string, where *WhereGroup) (int64, error) {
	docs, err := s.Find(ctx, collection, where, nil)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

func (s *SQLiteStore) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to list collections: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteStore) Close(ctx context.Context) error {
	return s.db.Close()
}
