// Copyright 2026 The NFTrout Indexer Authors
// This file is part of the NFTrout indexer.
//
// The NFTrout indexer is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// Package storage is the typed operations layer over a single embedded
// SQLite database: schema migrations, transactional boundaries, and
// every read/write the reconciler and read API need. All failures
// surface as *Error (driver error); callers decide whether to retry.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Error wraps every SQL failure the store surfaces. Higher layers
// decide whether a given call is worth retrying.
type Error struct{ err error }

func (e *Error) Error() string { return "database driver error: " + e.err.Error() }
func (e *Error) Unwrap() error { return e.err }

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return &Error{err: err}
}

// Store is a connection factory bound to one SQLite database. Callers
// never hold a *sql.Conn across calls; database/sql's own pool
// supplies the "open, run, close" discipline spec.md asks for.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path, enables WAL
// mode, and applies any pending migrations in one transaction. If the
// stored schema version exceeds the known migration count, Open
// refuses to proceed (binary older than the schema).
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrap(fmt.Errorf("opening %s: %w", path, err))
	}
	db.SetMaxOpenConns(1) // SQLite: serialize writers; WAL still allows concurrent readers
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, wrap(fmt.Errorf("enabling WAL: %w", err))
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func migrationScripts() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	scripts := make([]string, 0, len(names))
	for _, name := range names {
		b, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, string(b))
	}
	return scripts, nil
}

func (s *Store) migrate(ctx context.Context) error {
	scripts, err := migrationScripts()
	if err != nil {
		return wrap(err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(err)
	}
	defer tx.Rollback()

	var version int
	if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return wrap(err)
	}
	if version > len(scripts) {
		return wrap(fmt.Errorf("schema version %d is newer than the %d migrations this binary knows about", version, len(scripts)))
	}
	for _, script := range scripts[version:] {
		if _, err := tx.ExecContext(ctx, script); err != nil {
			return wrap(fmt.Errorf("applying migration %d: %w", version, err))
		}
		version++
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", len(scripts))); err != nil {
		return wrap(err)
	}
	return wrap(tx.Commit())
}

// Tx is the unit-of-work handle passed to WithTx's callback. Every
// writer operation in this package is a method on *Tx so it can only
// run inside a transaction.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a single transaction, committing on success
// and rolling back on any error (including a panic, which is
// re-raised after rollback).
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(&Tx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return wrap(tx.Commit())
}
