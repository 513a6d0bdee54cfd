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
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/logyourbody/logyourbody/pkg/assert"
)

var testTime = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func testWeight(v float64) *float64 {
	return &v
}

func TestSaveBodyMetricStampsAndMarksPending(t *testing.T) {
	db := InitTestMemoryDB(t)

	m := BodyMetric{
		ID:         "bm-1",
		UserID:     "user-1",
		Date:       testTime,
		Weight:     testWeight(81.6),
		WeightUnit: "kg",
	}
	if err := SaveBodyMetric(db, testTime, &m); err != nil {
		t.Fatal(err)
	}

	got, err := GetBodyMetric(db, "bm-1")
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, got.SyncStatus, SyncStatusPending, "status mismatch")
	assert.Equal(t, got.UpdatedAt, testTime, "updated_at should be stamped to now")
	assert.Equal(t, got.CreatedAt, testTime, "created_at should be stamped to now")

	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveBodyMetricPreservesCallerTimestamp(t *testing.T) {
	db := InitTestMemoryDB(t)

	stamped := testTime.Add(-time.Hour)
	m := BodyMetric{ID: "bm-1", UserID: "user-1", Date: testTime, UpdatedAt: stamped, CreatedAt: stamped}
	if err := SaveBodyMetric(db, testTime, &m); err != nil {
		t.Fatal(err)
	}

	got, err := GetBodyMetric(db, "bm-1")
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, got.UpdatedAt, stamped, "caller-set updated_at should not be overwritten")
}

func TestGetBodyMetricNotFound(t *testing.T) {
	db := InitTestMemoryDB(t)

	_, err := GetBodyMetric(db, "missing")

	assert.Equal(t, err, ErrNotFound, "error mismatch")
}

func TestGetBodyMetricsInRange(t *testing.T) {
	db := InitTestMemoryDB(t)

	dates := []time.Time{
		testTime.AddDate(0, 0, 2),
		testTime,
		testTime.AddDate(0, 0, 4),
	}
	for i, date := range dates {
		m := BodyMetric{ID: string(rune('a' + i)), UserID: "user-1", Date: date}
		if err := SaveBodyMetric(db, testTime, &m); err != nil {
			t.Fatal(err)
		}
	}

	other := BodyMetric{ID: "other", UserID: "user-2", Date: testTime}
	if err := SaveBodyMetric(db, testTime, &other); err != nil {
		t.Fatal(err)
	}

	from := testTime.AddDate(0, 0, 1)
	to := testTime.AddDate(0, 0, 5)
	got, err := GetBodyMetricsInRange(db, "user-1", &from, &to)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, len(got), 2, "result count mismatch")
	assert.Equal(t, got[0].ID, "b", "results should be ordered by date ascending")
	assert.Equal(t, got[1].ID, "c", "results should be ordered by date ascending")

	all, err := GetBodyMetricsInRange(db, "user-1", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, len(all), 3, "unbounded query should return all records for the user")
	assert.Equal(t, all[0].ID, "b", "unbounded results should be ordered by date ascending")
}

func TestSaveDailyMetricReplacesSameDate(t *testing.T) {
	db := InitTestMemoryDB(t)

	steps1 := int64(4000)
	m1 := DailyMetric{ID: "dm-1", UserID: "user-1", Date: "2024-03-01", Steps: &steps1}
	if err := SaveDailyMetric(db, testTime, &m1); err != nil {
		t.Fatal(err)
	}

	steps2 := int64(8200)
	m2 := DailyMetric{ID: "dm-2", UserID: "user-1", Date: "2024-03-01", Steps: &steps2}
	if err := SaveDailyMetric(db, testTime, &m2); err != nil {
		t.Fatal(err)
	}

	var count int
	MustScan(t, "counting daily metrics", db.QueryRow("SELECT count(*) FROM daily_metrics"), &count)
	assert.Equal(t, count, 1, "a user has at most one entry per date")

	got, err := GetDailyMetricByDate(db, "user-1", "2024-03-01")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, got.ID, "dm-2", "latest write should win for the date")
	assert.Equal(t, *got.Steps, int64(8200), "steps mismatch")
}

func TestGetDailyMetricsInRange(t *testing.T) {
	db := InitTestMemoryDB(t)

	for i, date := range []string{"2024-03-01", "2024-03-02", "2024-03-04"} {
		steps := int64(1000 * (i + 1))
		m := DailyMetric{ID: fmt.Sprintf("dm-%d", i), UserID: "user-1", Date: date, Steps: &steps}
		if err := SaveDailyMetric(db, testTime, &m); err != nil {
			t.Fatal(err)
		}
	}

	all, err := GetDailyMetricsInRange(db, "user-1", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, len(all), 3, "entry count mismatch")
	assert.Equal(t, all[0].Date, "2024-03-01", "order mismatch")
	assert.Equal(t, all[2].Date, "2024-03-04", "order mismatch")

	from := "2024-03-02"
	to := "2024-03-03"
	bounded, err := GetDailyMetricsInRange(db, "user-1", &from, &to)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, len(bounded), 1, "bounded entry count mismatch")
	assert.Equal(t, bounded[0].Date, "2024-03-02", "bounded entry mismatch")
}

func TestGetUnsynced(t *testing.T) {
	db := InitTestMemoryDB(t)

	p := Profile{ID: "user-1", Username: "sam"}
	if err := SaveProfile(db, testTime, &p); err != nil {
		t.Fatal(err)
	}

	m1 := BodyMetric{ID: "bm-1", UserID: "user-1", Date: testTime}
	if err := SaveBodyMetric(db, testTime, &m1); err != nil {
		t.Fatal(err)
	}
	m2 := BodyMetric{ID: "bm-2", UserID: "user-1", Date: testTime.AddDate(0, 0, 1)}
	if err := SaveBodyMetric(db, testTime, &m2); err != nil {
		t.Fatal(err)
	}

	d := DailyMetric{ID: "dm-1", UserID: "user-1", Date: "2024-03-01"}
	if err := SaveDailyMetric(db, testTime, &d); err != nil {
		t.Fatal(err)
	}

	ok, err := MarkBodyMetricSynced(db, "bm-1", testTime, testTime)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, ok, true, "mark synced should succeed")

	got, err := GetUnsynced(db)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, got.Total(), 3, "total mismatch")
	assert.Equal(t, len(got.Profiles), 1, "pending profile count mismatch")
	assert.Equal(t, len(got.BodyMetrics), 1, "pending body metric count mismatch")
	assert.Equal(t, got.BodyMetrics[0].ID, "bm-2", "synced record should not be pending")
	assert.Equal(t, len(got.DailyMetrics), 1, "pending daily metric count mismatch")

	count, err := PendingCount(db)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, count, 3, "pending count mismatch")
}

func TestMarkSyncedSkipsRecordModifiedMidPush(t *testing.T) {
	db := InitTestMemoryDB(t)

	m := BodyMetric{ID: "bm-1", UserID: "user-1", Date: testTime}
	if err := SaveBodyMetric(db, testTime, &m); err != nil {
		t.Fatal(err)
	}
	seen := m.UpdatedAt

	// a local edit lands between the pass reading the record and marking it
	edited := m
	edited.Notes = "edited during push"
	edited.UpdatedAt = testTime.Add(time.Second)
	if err := SaveBodyMetric(db, testTime, &edited); err != nil {
		t.Fatal(err)
	}

	ok, err := MarkBodyMetricSynced(db, "bm-1", seen, testTime.Add(2*time.Second))
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, ok, false, "a record modified mid-push must not be marked synced")

	got, err := GetBodyMetric(db, "bm-1")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, got.SyncStatus, SyncStatusPending, "record should stay pending")
	assert.Equal(t, got.Notes, "edited during push", "edit should be preserved")
}

func TestMarkSyncedAdvancesTimestamp(t *testing.T) {
	db := InitTestMemoryDB(t)

	m := BodyMetric{ID: "bm-1", UserID: "user-1", Date: testTime}
	if err := SaveBodyMetric(db, testTime, &m); err != nil {
		t.Fatal(err)
	}

	stamped := testTime.Add(5 * time.Second)
	ok, err := MarkBodyMetricSynced(db, "bm-1", m.UpdatedAt, stamped)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, ok, true, "mark synced should succeed")

	got, err := GetBodyMetric(db, "bm-1")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, got.SyncStatus, SyncStatusSynced, "status mismatch")
	assert.Equal(t, got.UpdatedAt, stamped, "updated_at should match the stamp pushed remotely")
}

func TestProfileSettingsRoundTrip(t *testing.T) {
	db := InitTestMemoryDB(t)

	p := Profile{
		ID: "user-1",
		Settings: Settings{
			Units:         SettingsUnits{Weight: "lbs", Height: "ft"},
			Notifications: SettingsNotifications{DailyReminder: true},
			Extra:         map[string]string{"theme": "dark"},
		},
	}
	if err := SaveProfile(db, testTime, &p); err != nil {
		t.Fatal(err)
	}

	got, err := GetProfile(db, "user-1")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(p.Settings, got.Settings); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestClearAll(t *testing.T) {
	db := InitTestMemoryDB(t)

	p := Profile{ID: "user-1"}
	if err := SaveProfile(db, testTime, &p); err != nil {
		t.Fatal(err)
	}
	m := BodyMetric{ID: "bm-1", UserID: "user-1", Date: testTime}
	if err := SaveBodyMetric(db, testTime, &m); err != nil {
		t.Fatal(err)
	}
	d := DailyMetric{ID: "dm-1", UserID: "user-1", Date: "2024-03-01"}
	if err := SaveDailyMetric(db, testTime, &d); err != nil {
		t.Fatal(err)
	}

	if err := ClearAll(db); err != nil {
		t.Fatal(err)
	}

	count, err := PendingCount(db)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, count, 0, "all records should be gone")

	_, err = GetProfile(db, "user-1")
	assert.Equal(t, err, ErrNotFound, "profile should be gone")
}

func TestSystemRecords(t *testing.T) {
	db := InitTestMemoryDB(t)

	if err := UpdateSystem(db, "last_sync_time", int64(1234)); err != nil {
		t.Fatal(err)
	}

	var got int64
	if err := GetSystem(db, "last_sync_time", &got); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, got, int64(1234), "value mismatch")

	if err := UpdateSystem(db, "last_sync_time", int64(5678)); err != nil {
		t.Fatal(err)
	}
	if err := GetSystem(db, "last_sync_time", &got); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, got, int64(5678), "value should be overwritten")

	err := GetSystem(db, "missing_key", &got)
	assert.Equal(t, err, ErrNotFound, "missing key should return not found")
}
