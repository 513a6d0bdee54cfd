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
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}

	return *v
}

func nullInt(v *int64) interface{} {
	if v == nil {
		return nil
	}

	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}

	ret := v.Float64
	return &ret
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}

	ret := v.Int64
	return &ret
}

// SaveProfile upserts the given profile by its identifier and marks it pending.
// If the caller did not stamp UpdatedAt, it is set to now.
func SaveProfile(db *DB, now time.Time, p *Profile) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	p.SyncStatus = SyncStatusPending

	settings, err := json.Marshal(p.Settings)
	if err != nil {
		return errors.Wrap(err, "marshalling settings")
	}

	_, err = db.Exec(`INSERT INTO profiles
		(id, username, full_name, avatar_url, bio, email, height, height_unit, date_of_birth, gender, goal_weight, goal_weight_unit, settings, created_at, updated_at, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			full_name = excluded.full_name,
			avatar_url = excluded.avatar_url,
			bio = excluded.bio,
			email = excluded.email,
			height = excluded.height,
			height_unit = excluded.height_unit,
			date_of_birth = excluded.date_of_birth,
			gender = excluded.gender,
			goal_weight = excluded.goal_weight,
			goal_weight_unit = excluded.goal_weight_unit,
			settings = excluded.settings,
			updated_at = excluded.updated_at,
			sync_status = excluded.sync_status`,
		p.ID, p.Username, p.FullName, p.AvatarURL, p.Bio, p.Email, nullFloat(p.Height), p.HeightUnit,
		p.DateOfBirth, p.Gender, nullFloat(p.GoalWeight), p.GoalWeightUnit, string(settings),
		toMillis(p.CreatedAt), toMillis(p.UpdatedAt), p.SyncStatus)
	if err != nil {
		return errors.Wrapf(err, "upserting profile %s", p.ID)
	}

	return nil
}

func scanProfile(row rowScanner) (Profile, error) {
	var p Profile
	var height, goalWeight sql.NullFloat64
	var settings string
	var createdAt, updatedAt int64

	err := row.Scan(&p.ID, &p.Username, &p.FullName, &p.AvatarURL, &p.Bio, &p.Email, &height,
		&p.HeightUnit, &p.DateOfBirth, &p.Gender, &goalWeight, &p.GoalWeightUnit, &settings,
		&createdAt, &updatedAt, &p.SyncStatus)
	if err != nil {
		return p, err
	}

	p.Height = floatPtr(height)
	p.GoalWeight = floatPtr(goalWeight)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)

	if err := json.Unmarshal([]byte(settings), &p.Settings); err != nil {
		return p, errors.Wrapf(err, "unmarshalling settings of profile %s", p.ID)
	}

	return p, nil
}

const profileColumns = "id, username, full_name, avatar_url, bio, email, height, height_unit, date_of_birth, gender, goal_weight, goal_weight_unit, settings, created_at, updated_at, sync_status"

// GetProfile returns the profile with the given id, or ErrNotFound
func GetProfile(db *DB, id string) (Profile, error) {
	row := db.QueryRow("SELECT "+profileColumns+" FROM profiles WHERE id = ?", id)

	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, errors.Wrapf(err, "getting profile %s", id)
	}

	return p, nil
}

// SaveBodyMetric upserts the given body metric entry by its identifier and
// marks it pending. If the caller did not stamp UpdatedAt, it is set to now.
func SaveBodyMetric(db *DB, now time.Time, m *BodyMetric) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
	m.SyncStatus = SyncStatusPending

	_, err := db.Exec(`INSERT INTO body_metrics
		(id, user_id, date, weight, weight_unit, body_fat_percentage, body_fat_method, lean_mass, bone_mass, fat_mass, waist, neck, hip, photo_url, notes, created_at, updated_at, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			date = excluded.date,
			weight = excluded.weight,
			weight_unit = excluded.weight_unit,
			body_fat_percentage = excluded.body_fat_percentage,
			body_fat_method = excluded.body_fat_method,
			lean_mass = excluded.lean_mass,
			bone_mass = excluded.bone_mass,
			fat_mass = excluded.fat_mass,
			waist = excluded.waist,
			neck = excluded.neck,
			hip = excluded.hip,
			photo_url = excluded.photo_url,
			notes = excluded.notes,
			updated_at = excluded.updated_at,
			sync_status = excluded.sync_status`,
		m.ID, m.UserID, toMillis(m.Date), nullFloat(m.Weight), m.WeightUnit,
		nullFloat(m.BodyFatPercentage), m.BodyFatMethod, nullFloat(m.LeanMass), nullFloat(m.BoneMass),
		nullFloat(m.FatMass), nullFloat(m.Waist), nullFloat(m.Neck), nullFloat(m.Hip), m.PhotoURL,
		m.Notes, toMillis(m.CreatedAt), toMillis(m.UpdatedAt), m.SyncStatus)
	if err != nil {
		return errors.Wrapf(err, "upserting body metric %s", m.ID)
	}

	return nil
}

func scanBodyMetric(row rowScanner) (BodyMetric, error) {
	var m BodyMetric
	var weight, bodyFat, leanMass, boneMass, fatMass, waist, neck, hip sql.NullFloat64
	var date, createdAt, updatedAt int64

	err := row.Scan(&m.ID, &m.UserID, &date, &weight, &m.WeightUnit, &bodyFat, &m.BodyFatMethod,
		&leanMass, &boneMass, &fatMass, &waist, &neck, &hip, &m.PhotoURL, &m.Notes,
		&createdAt, &updatedAt, &m.SyncStatus)
	if err != nil {
		return m, err
	}

	m.Date = fromMillis(date)
	m.Weight = floatPtr(weight)
	m.BodyFatPercentage = floatPtr(bodyFat)
	m.LeanMass = floatPtr(leanMass)
	m.BoneMass = floatPtr(boneMass)
	m.FatMass = floatPtr(fatMass)
	m.Waist = floatPtr(waist)
	m.Neck = floatPtr(neck)
	m.Hip = floatPtr(hip)
	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updatedAt)

	return m, nil
}

const bodyMetricColumns = "id, user_id, date, weight, weight_unit, body_fat_percentage, body_fat_method, lean_mass, bone_mass, fat_mass, waist, neck, hip, photo_url, notes, created_at, updated_at, sync_status"

// GetBodyMetric returns the body metric entry with the given id, or ErrNotFound
func GetBodyMetric(db *DB, id string) (BodyMetric, error) {
	row := db.QueryRow("SELECT "+bodyMetricColumns+" FROM body_metrics WHERE id = ?", id)

	m, err := scanBodyMetric(row)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, errors.Wrapf(err, "getting body metric %s", id)
	}

	return m, nil
}

// GetBodyMetricsInRange returns the user's body metric entries whose dates fall
// within [from, to], ordered by date ascending. A nil bound is unbounded.
func GetBodyMetricsInRange(db *DB, userID string, from, to *time.Time) ([]BodyMetric, error) {
	query := "SELECT " + bodyMetricColumns + " FROM body_metrics WHERE user_id = ?"
	args := []interface{}{userID}

	if from != nil {
		query += " AND date >= ?"
		args = append(args, toMillis(*from))
	}
	if to != nil {
		query += " AND date <= ?"
		args = append(args, toMillis(*to))
	}

	query += " ORDER BY date ASC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying body metrics")
	}
	defer rows.Close()

	var ret []BodyMetric
	for rows.Next() {
		m, err := scanBodyMetric(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning a body metric row")
		}

		ret = append(ret, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating body metric rows")
	}

	return ret, nil
}

// SaveDailyMetric upserts the given daily metric entry and marks it pending.
// A user has at most one entry per calendar date; writing a new id for an
// existing date replaces the old entry.
func SaveDailyMetric(db *DB, now time.Time, m *DailyMetric) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
	m.SyncStatus = SyncStatusPending

	_, err := db.Exec(`INSERT OR REPLACE INTO daily_metrics
		(id, user_id, date, steps, notes, created_at, updated_at, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Date, nullInt(m.Steps), m.Notes,
		toMillis(m.CreatedAt), toMillis(m.UpdatedAt), m.SyncStatus)
	if err != nil {
		return errors.Wrapf(err, "upserting daily metric %s", m.ID)
	}

	return nil
}

func scanDailyMetric(row rowScanner) (DailyMetric, error) {
	var m DailyMetric
	var steps sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&m.ID, &m.UserID, &m.Date, &steps, &m.Notes, &createdAt, &updatedAt, &m.SyncStatus)
	if err != nil {
		return m, err
	}

	m.Steps = intPtr(steps)
	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updatedAt)

	return m, nil
}

const dailyMetricColumns = "id, user_id, date, steps, notes, created_at, updated_at, sync_status"

// GetDailyMetric returns the daily metric entry with the given id, or ErrNotFound
func GetDailyMetric(db *DB, id string) (DailyMetric, error) {
	row := db.QueryRow("SELECT "+dailyMetricColumns+" FROM daily_metrics WHERE id = ?", id)

	m, err := scanDailyMetric(row)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, errors.Wrapf(err, "getting daily metric %s", id)
	}

	return m, nil
}

// GetDailyMetricByDate returns the user's daily metric entry for the given
// calendar date, or ErrNotFound
func GetDailyMetricByDate(db *DB, userID, date string) (DailyMetric, error) {
	row := db.QueryRow("SELECT "+dailyMetricColumns+" FROM daily_metrics WHERE user_id = ? AND date = ?", userID, date)

	m, err := scanDailyMetric(row)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, errors.Wrapf(err, "getting daily metric for %s on %s", userID, date)
	}

	return m, nil
}

// GetDailyMetricsInRange returns the user's daily metric entries between the
// given calendar dates inclusive, ordered by date ascending. Nil bounds are
// open on that side.
func GetDailyMetricsInRange(db *DB, userID string, from, to *string) ([]DailyMetric, error) {
	query := "SELECT " + dailyMetricColumns + " FROM daily_metrics WHERE user_id = ?"
	args := []interface{}{userID}

	if from != nil {
		query += " AND date >= ?"
		args = append(args, *from)
	}
	if to != nil {
		query += " AND date <= ?"
		args = append(args, *to)
	}

	query += " ORDER BY date ASC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying daily metrics")
	}
	defer rows.Close()

	var ret []DailyMetric
	for rows.Next() {
		m, err := scanDailyMetric(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning a daily metric row")
		}

		ret = append(ret, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating daily metric rows")
	}

	return ret, nil
}

// GetUnsynced returns, grouped by kind, every record whose status is pending
func GetUnsynced(db *DB) (UnsyncedItems, error) {
	var ret UnsyncedItems

	rows, err := db.Query("SELECT "+profileColumns+" FROM profiles WHERE sync_status = ?", SyncStatusPending)
	if err != nil {
		return ret, errors.Wrap(err, "querying pending profiles")
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return ret, errors.Wrap(err, "scanning a pending profile")
		}
		ret.Profiles = append(ret.Profiles, p)
	}
	if err := rows.Err(); err != nil {
		return ret, errors.Wrap(err, "iterating pending profiles")
	}

	bodyRows, err := db.Query("SELECT "+bodyMetricColumns+" FROM body_metrics WHERE sync_status = ? ORDER BY date ASC", SyncStatusPending)
	if err != nil {
		return ret, errors.Wrap(err, "querying pending body metrics")
	}
	defer bodyRows.Close()

	for bodyRows.Next() {
		m, err := scanBodyMetric(bodyRows)
		if err != nil {
			return ret, errors.Wrap(err, "scanning a pending body metric")
		}
		ret.BodyMetrics = append(ret.BodyMetrics, m)
	}
	if err := bodyRows.Err(); err != nil {
		return ret, errors.Wrap(err, "iterating pending body metrics")
	}

	dailyRows, err := db.Query("SELECT "+dailyMetricColumns+" FROM daily_metrics WHERE sync_status = ? ORDER BY date ASC", SyncStatusPending)
	if err != nil {
		return ret, errors.Wrap(err, "querying pending daily metrics")
	}
	defer dailyRows.Close()

	for dailyRows.Next() {
		m, err := scanDailyMetric(dailyRows)
		if err != nil {
			return ret, errors.Wrap(err, "scanning a pending daily metric")
		}
		ret.DailyMetrics = append(ret.DailyMetrics, m)
	}
	if err := dailyRows.Err(); err != nil {
		return ret, errors.Wrap(err, "iterating pending daily metrics")
	}

	return ret, nil
}

// PendingCount returns the number of pending records across all kinds
func PendingCount(db *DB) (int, error) {
	var ret int
	err := db.QueryRow(`SELECT
		(SELECT count(*) FROM profiles WHERE sync_status = ?) +
		(SELECT count(*) FROM body_metrics WHERE sync_status = ?) +
		(SELECT count(*) FROM daily_metrics WHERE sync_status = ?)`,
		SyncStatusPending, SyncStatusPending, SyncStatusPending).Scan(&ret)
	if err != nil {
		return 0, errors.Wrap(err, "counting pending records")
	}

	return ret, nil
}

// markSynced flips the record's status to synced and advances updated_at to the
// stamp sent to the remote store, but only if the record has not been modified
// since the sync pass read it. Returns false if the record changed mid-push, in
// which case it stays pending and is picked up by the next pass.
func markSynced(db *DB, table, id string, seen, stamped time.Time) (bool, error) {
	res, err := db.Exec("UPDATE "+table+" SET sync_status = ?, updated_at = ? WHERE id = ? AND updated_at = ?",
		SyncStatusSynced, toMillis(stamped), id, toMillis(seen))
	if err != nil {
		return false, errors.Wrapf(err, "marking %s record %s synced", table, id)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "getting affected rows")
	}

	return n > 0, nil
}

// MarkProfileSynced marks the profile synced if it is unchanged since seen
func MarkProfileSynced(db *DB, id string, seen, stamped time.Time) (bool, error) {
	return markSynced(db, "profiles", id, seen, stamped)
}

// MarkBodyMetricSynced marks the body metric synced if it is unchanged since seen
func MarkBodyMetricSynced(db *DB, id string, seen, stamped time.Time) (bool, error) {
	return markSynced(db, "body_metrics", id, seen, stamped)
}

// MarkDailyMetricSynced marks the daily metric synced if it is unchanged since seen
func MarkDailyMetricSynced(db *DB, id string, seen, stamped time.Time) (bool, error) {
	return markSynced(db, "daily_metrics", id, seen, stamped)
}

// ClearAll wipes all record kinds in one transaction. Used on logout.
func ClearAll(db *DB) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning a transaction")
	}

	for _, table := range []string{"profiles", "body_metrics", "daily_metrics"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "clearing %s", table)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}

	return nil
}
