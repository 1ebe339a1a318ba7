package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	asmerrors "asmlsp/internal/errors"
	"asmlsp/internal/schema"
)

// BundleStore keeps every store as a row of a single sqlite file, which is
// easier to ship than a directory of stores.
type BundleStore struct {
	conn   *sql.DB
	logger *zap.Logger
	dbPath string
}

// OpenBundle opens or creates the bundle at dbPath.
func OpenBundle(dbPath string, logger *zap.Logger) (*BundleStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create bundle directory: %w", err)
		}
	}

	dbExists := fileExists(dbPath)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	b := &BundleStore{conn: conn, logger: logger, dbPath: dbPath}

	if !dbExists {
		logger.Info("creating store bundle", zap.String("path", dbPath))
	}
	if err := b.initializeSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return b, nil
}

// Path returns the bundle file.
func (b *BundleStore) Path() string { return b.dbPath }

func (b *BundleStore) Close() error {
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// WithTx executes fn within a transaction, rolling back if it fails.
func (b *BundleStore) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := b.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			b.logger.Error("failed to rollback transaction",
				zap.Error(err),
				zap.NamedError("rollback_error", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (b *BundleStore) Read(ctx context.Context, key schema.StoreKey) (*Payload, error) {
	var data []byte
	err := b.conn.QueryRowContext(ctx,
		"SELECT payload FROM stores WHERE kind = ? AND key = ?",
		string(key.Kind), key.Key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, asmerrors.NewStoreError(key.String(), "failed to query bundle", err)
	}
	return Decode(data, key)
}

func (b *BundleStore) Write(ctx context.Context, p *Payload) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	return b.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stores (kind, key, digest, records, payload)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(kind, key) DO UPDATE SET
				digest = excluded.digest,
				records = excluded.records,
				payload = excluded.payload
		`, string(p.Kind), p.Key, p.Digest, p.Len(), data)
		if err != nil {
			return fmt.Errorf("failed to write store %s: %w", p.StoreKey(), err)
		}
		return nil
	})
}

func (b *BundleStore) Keys(ctx context.Context) ([]schema.StoreKey, error) {
	rows, err := b.conn.QueryContext(ctx, "SELECT kind, key FROM stores")
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	defer rows.Close()

	var keys []schema.StoreKey
	for rows.Next() {
		var kind, key string
		if err := rows.Scan(&kind, &key); err != nil {
			return nil, err
		}
		k := schema.StoreKey{Kind: schema.DocKind(kind), Key: key}
		if k.Validate() == nil {
			keys = append(keys, k)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortKeys(keys)
	return keys, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
