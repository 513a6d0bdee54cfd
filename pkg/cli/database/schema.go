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

package database

import (
	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

// InitSchema applies the schema to the given database. The schema is
// idempotent; applying it to an already-initialized database is a no-op.
func InitSchema(db *DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return err
	}

	return nil
}
