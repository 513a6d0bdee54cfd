/* Copyright 2025 LogYourBody Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package database provides the local store for records awaiting sync
package database

import (
	"database/sql"

	// the sqlite driver backing the local store
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// ErrNotFound is an error for a record that does not exist in the local store.
// It is not an exceptional condition; callers must check for it explicitly.
var ErrNotFound = errors.New("record not found")

// DB is a wrapper around the SQLite connection backing the local store
type DB struct {
	*sql.DB
}

// Open initializes a database connection to the file at the given path
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening database at %s", path)
	}

	// The local store is accessed from the caller's goroutine and the sync
	// manager's background goroutine. A single connection serializes them.
	db.SetMaxOpenConns(1)

	return &DB{db}, nil
}

// GetSystem scans the value of the system record with the given key into dest
func GetSystem(db *DB, key string, dest interface{}) error {
	err := db.QueryRow("SELECT value FROM system WHERE key = ?", key).Scan(dest)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "querying system record %s", key)
	}

	return nil
}

// UpdateSystem upserts the system record with the given key
func UpdateSystem(db *DB, key string, val interface{}) error {
	_, err := db.Exec(`INSERT INTO system (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, val)
	if err != nil {
		return errors.Wrapf(err, "updating system record %s", key)
	}

	return nil
}

// DeleteSystem removes the system record with the given key
func DeleteSystem(db *DB, key string) error {
	_, err := db.Exec("DELETE FROM system WHERE key = ?", key)
	if err != nil {
		return errors.Wrapf(err, "deleting system record %s", key)
	}

	return nil
}
