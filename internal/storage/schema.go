package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Bundle layout version, tracked separately from the payload SchemaVersion.
const currentBundleVersion = 1

func (b *BundleStore) initializeSchema() error {
	version, err := b.getBundleVersion()
	if err != nil {
		return err
	}
	if version > currentBundleVersion {
		return fmt.Errorf("bundle version %d is newer than supported version %d", version, currentBundleVersion)
	}
	if version == currentBundleVersion {
		b.logger.Debug("bundle schema is up to date")
		return nil
	}

	return b.WithTx(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER NOT NULL
			)
		`); err != nil {
			return fmt.Errorf("failed to create schema_version table: %w", err)
		}
		if _, err := tx.Exec(`
			CREATE TABLE IF NOT EXISTS stores (
				kind TEXT NOT NULL CHECK(kind IN ('instruction', 'register', 'directive')),
				key TEXT NOT NULL,
				digest TEXT NOT NULL,
				records INTEGER NOT NULL,
				payload BLOB NOT NULL,
				PRIMARY KEY (kind, key)
			)
		`); err != nil {
			return fmt.Errorf("failed to create stores table: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
			return err
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", currentBundleVersion); err != nil {
			return err
		}
		return nil
	})
}

func (b *BundleStore) getBundleVersion() (int, error) {
	var tableName string
	err := b.conn.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = b.conn.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}
