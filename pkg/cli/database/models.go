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
	"time"
)

// SyncStatus is the local bookkeeping tag for a record. It is never sent to
// the remote store.
type SyncStatus string

const (
	// SyncStatusPending marks a record not yet confirmed persisted remotely
	SyncStatusPending SyncStatus = "pending"
	// SyncStatusSynced marks a record confirmed persisted remotely
	SyncStatusSynced SyncStatus = "synced"
	// SyncStatusConflict marks a record whose local and remote copies diverged.
	// It is transient: the conflict resolver replaces it within the same pass.
	SyncStatusConflict SyncStatus = "conflict"
)

// SettingsUnits holds the preferred display units
type SettingsUnits struct {
	Weight       string `json:"weight,omitempty"`
	Height       string `json:"height,omitempty"`
	Measurements string `json:"measurements,omitempty"`
}

// SettingsNotifications holds the notification preference flags
type SettingsNotifications struct {
	DailyReminder bool `json:"dailyReminder"`
	WeeklyReport  bool `json:"weeklyReport"`
}

// Settings is the free-form preferences blob on a profile. Known keys are
// enumerated; unrecognized keys survive round trips through Extra.
type Settings struct {
	Units         SettingsUnits         `json:"units"`
	Notifications SettingsNotifications `json:"notifications"`
	Extra         map[string]string     `json:"extra,omitempty"`
}

// Profile is the singleton per-user record holding identity and preferences
type Profile struct {
	ID             string     `json:"id"`
	Username       string     `json:"username,omitempty"`
	FullName       string     `json:"full_name,omitempty"`
	AvatarURL      string     `json:"avatar_url,omitempty"`
	Bio            string     `json:"bio,omitempty"`
	Email          string     `json:"email,omitempty"`
	Height         *float64   `json:"height,omitempty"`
	HeightUnit     string     `json:"height_unit,omitempty"`
	DateOfBirth    string     `json:"date_of_birth,omitempty"`
	Gender         string     `json:"gender,omitempty"`
	GoalWeight     *float64   `json:"goal_weight,omitempty"`
	GoalWeightUnit string     `json:"goal_weight_unit,omitempty"`
	Settings       Settings   `json:"settings"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	SyncStatus     SyncStatus `json:"-"`
}

// BodyMetric is one body-composition measurement. Entries are identified by
// their own client-generated id, not by date; multiple entries per date are
// permitted.
type BodyMetric struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Date              time.Time  `json:"date"`
	Weight            *float64   `json:"weight,omitempty"`
	WeightUnit        string     `json:"weight_unit,omitempty"`
	BodyFatPercentage *float64   `json:"body_fat_percentage,omitempty"`
	BodyFatMethod     string     `json:"body_fat_method,omitempty"`
	LeanMass          *float64   `json:"lean_mass,omitempty"`
	BoneMass          *float64   `json:"bone_mass,omitempty"`
	FatMass           *float64   `json:"fat_mass,omitempty"`
	Waist             *float64   `json:"waist,omitempty"`
	Neck              *float64   `json:"neck,omitempty"`
	Hip               *float64   `json:"hip,omitempty"`
	PhotoURL          string     `json:"photo_url,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	SyncStatus        SyncStatus `json:"-"`
}

// DailyMetric is the at-most-one-per-day record holding step count and a note.
// Unlike BodyMetric it is updated incrementally through the day.
type DailyMetric struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Date       string     `json:"date"`
	Steps      *int64     `json:"steps,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	SyncStatus SyncStatus `json:"-"`
}

// UnsyncedItems groups every pending record by kind. It is the authoritative
// definition of the work a sync pass must do.
type UnsyncedItems struct {
	Profiles     []Profile
	BodyMetrics  []BodyMetric
	DailyMetrics []DailyMetric
}

// Total returns the number of pending records across all kinds
func (u UnsyncedItems) Total() int {
	return len(u.Profiles) + len(u.BodyMetrics) + len(u.DailyMetrics)
}

// DailyDate formats a time as a daily metric calendar date
func DailyDate(t time.Time) string {
	return t.Format("2006-01-02")
}
