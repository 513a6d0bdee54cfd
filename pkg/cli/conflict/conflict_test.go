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

package conflict

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/logyourbody/logyourbody/pkg/assert"
	"github.com/logyourbody/logyourbody/pkg/cli/database"
)

var t0 = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func floatVal(v float64) *float64 {
	return &v
}

func stepsVal(v int64) *int64 {
	return &v
}

func TestParseStrategy(t *testing.T) {
	testCases := []struct {
		input    string
		expected Strategy
		ok       bool
	}{
		{input: "", expected: StrategyLastWriteWins, ok: true},
		{input: "last-write-wins", expected: StrategyLastWriteWins, ok: true},
		{input: "server-wins", expected: StrategyServerWins, ok: true},
		{input: "client-wins", expected: StrategyClientWins, ok: true},
		{input: "merge", expected: StrategyMerge, ok: true},
		{input: "first-write-wins", ok: false},
	}

	for _, tc := range testCases {
		got, err := ParseStrategy(tc.input)

		if tc.ok {
			if err != nil {
				t.Errorf("parsing %q: unexpected error %v", tc.input, err)
				continue
			}
			assert.Equal(t, got, tc.expected, "strategy mismatch")
		} else if err == nil {
			t.Errorf("parsing %q: expected an error", tc.input)
		}
	}
}

func TestLastWriteWinsDeterminism(t *testing.T) {
	local := database.BodyMetric{ID: "bm-1", Notes: "local", UpdatedAt: t0.Add(time.Minute)}
	remote := database.BodyMetric{ID: "bm-1", Notes: "remote", UpdatedAt: t0}

	got := ResolveBodyMetric(StrategyLastWriteWins, local, remote)
	assert.Equal(t, got.Notes, "local", "later local write should win in full")

	// swap the timestamps and the other side wins
	local.UpdatedAt, remote.UpdatedAt = remote.UpdatedAt, local.UpdatedAt
	got = ResolveBodyMetric(StrategyLastWriteWins, local, remote)
	assert.Equal(t, got.Notes, "remote", "later remote write should win in full")
}

func TestLastWriteWinsTiePrefersRemote(t *testing.T) {
	local := database.BodyMetric{ID: "bm-1", Notes: "local", UpdatedAt: t0}
	remote := database.BodyMetric{ID: "bm-1", Notes: "remote", UpdatedAt: t0}

	got := ResolveBodyMetric(StrategyLastWriteWins, local, remote)

	assert.Equal(t, got.Notes, "remote", "a timestamp tie resolves to the remote side")
}

func TestServerWinsAndClientWins(t *testing.T) {
	local := database.Profile{ID: "user-1", Username: "local", UpdatedAt: t0.Add(time.Hour)}
	remote := database.Profile{ID: "user-1", Username: "remote", UpdatedAt: t0}

	got := ResolveProfile(StrategyServerWins, local, remote)
	assert.Equal(t, got.Username, "remote", "server-wins ignores timestamps")

	got = ResolveProfile(StrategyClientWins, local, remote)
	assert.Equal(t, got.Username, "local", "client-wins ignores timestamps")
}

func TestMergeBodyMetricsFillsAbsentFields(t *testing.T) {
	// device A logged weight at T+0; device B added a note at T+2 without a weight
	deviceA := database.BodyMetric{
		ID:         "bm-1",
		UserID:     "user-1",
		Weight:     floatVal(81.6),
		WeightUnit: "kg",
		PhotoURL:   "photos/2024-03-01.jpg",
		UpdatedAt:  t0,
	}
	deviceB := database.BodyMetric{
		ID:        "bm-1",
		UserID:    "user-1",
		Notes:     "post-workout",
		UpdatedAt: t0.Add(2 * time.Minute),
	}

	got := ResolveBodyMetric(StrategyMerge, deviceA, deviceB)

	assert.Equal(t, got.UpdatedAt, deviceB.UpdatedAt, "base should be the time winner")
	assert.Equal(t, *got.Weight, 81.6, "weight should be filled in from the losing side")
	assert.Equal(t, got.WeightUnit, "kg", "weight unit should be filled in from the losing side")
	assert.Equal(t, got.PhotoURL, "photos/2024-03-01.jpg", "photo should be filled in from the losing side")
	assert.Equal(t, got.Notes, "post-workout", "base note carries through")
}

func TestMergeBodyMetricsKeepsBothNotes(t *testing.T) {
	local := database.BodyMetric{ID: "bm-1", Notes: "morning weigh-in", UpdatedAt: t0}
	remote := database.BodyMetric{ID: "bm-1", Notes: "after run", UpdatedAt: t0.Add(time.Minute)}

	got := ResolveBodyMetric(StrategyMerge, local, remote)

	if !strings.Contains(got.Notes, "morning weigh-in") || !strings.Contains(got.Notes, "after run") {
		t.Errorf("merged note should contain both originals. Actual: %q.", got.Notes)
	}
}

func TestMergeBodyMetricsIdenticalNotes(t *testing.T) {
	local := database.BodyMetric{ID: "bm-1", Notes: "same", UpdatedAt: t0}
	remote := database.BodyMetric{ID: "bm-1", Notes: "same", UpdatedAt: t0.Add(time.Minute)}

	got := ResolveBodyMetric(StrategyMerge, local, remote)

	assert.Equal(t, got.Notes, "same", "identical notes should not be duplicated")
}

func TestMergeDailyMetricsStepsMonotonic(t *testing.T) {
	testCases := []struct {
		local    *int64
		remote   *int64
		expected *int64
	}{
		{local: stepsVal(8200), remote: stepsVal(4000), expected: stepsVal(8200)},
		{local: stepsVal(4000), remote: stepsVal(8200), expected: stepsVal(8200)},
		{local: nil, remote: stepsVal(4000), expected: stepsVal(4000)},
		{local: stepsVal(4000), remote: nil, expected: stepsVal(4000)},
		{local: nil, remote: nil, expected: nil},
	}

	for _, tc := range testCases {
		local := database.DailyMetric{ID: "dm-1", Steps: tc.local, UpdatedAt: t0.Add(time.Minute)}
		remote := database.DailyMetric{ID: "dm-1", Steps: tc.remote, UpdatedAt: t0}

		got := ResolveDailyMetric(StrategyMerge, local, remote)

		if tc.expected == nil {
			if got.Steps != nil {
				t.Errorf("expected nil steps. Actual: %d.", *got.Steps)
			}
			continue
		}
		if got.Steps == nil {
			t.Errorf("expected %d steps. Actual: nil.", *tc.expected)
			continue
		}
		assert.Equal(t, *got.Steps, *tc.expected, "steps merge should take the maximum")
	}
}

func TestMergeProfilesSettings(t *testing.T) {
	local := database.Profile{
		ID:       "user-1",
		Username: "sam",
		Settings: database.Settings{
			Units:         database.SettingsUnits{Weight: "lbs"},
			Notifications: database.SettingsNotifications{DailyReminder: true},
			Extra:         map[string]string{"theme": "dark"},
		},
		UpdatedAt: t0.Add(time.Minute),
	}
	remote := database.Profile{
		ID:       "user-1",
		FullName: "Sam Doe",
		Settings: database.Settings{
			Units: database.SettingsUnits{Weight: "kg", Height: "cm"},
			Extra: map[string]string{"theme": "light", "locale": "en-GB"},
		},
		UpdatedAt: t0,
	}

	got := ResolveProfile(StrategyMerge, local, remote)

	expected := database.Settings{
		Units:         database.SettingsUnits{Weight: "lbs", Height: "cm"},
		Notifications: database.SettingsNotifications{DailyReminder: true},
		Extra:         map[string]string{"theme": "dark", "locale": "en-GB"},
	}
	if diff := cmp.Diff(expected, got.Settings); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, got.Username, "sam", "base username carries through")
	assert.Equal(t, got.FullName, "Sam Doe", "full name should be filled in from the losing side")
}

func TestMergeIsDeterministic(t *testing.T) {
	local := database.BodyMetric{ID: "bm-1", Weight: floatVal(81.6), Notes: "a", UpdatedAt: t0}
	remote := database.BodyMetric{ID: "bm-1", Notes: "b", UpdatedAt: t0.Add(time.Minute)}

	first := ResolveBodyMetric(StrategyMerge, local, remote)
	second := ResolveBodyMetric(StrategyMerge, local, remote)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated resolution should be identical (-first +second):\n%s", diff)
	}
}

func TestHasConflict(t *testing.T) {
	lastSync := t0

	testCases := []struct {
		name     string
		local    time.Time
		remote   time.Time
		lastSync *time.Time
		expected bool
	}{
		{
			name:     "both modified after last sync",
			local:    t0.Add(time.Minute),
			remote:   t0.Add(2 * time.Minute),
			lastSync: &lastSync,
			expected: true,
		},
		{
			name:     "only local modified after last sync",
			local:    t0.Add(time.Minute),
			remote:   t0.Add(-time.Minute),
			lastSync: &lastSync,
			expected: false,
		},
		{
			name:     "no last sync, within slack",
			local:    t0,
			remote:   t0.Add(500 * time.Millisecond),
			expected: false,
		},
		{
			name:     "no last sync, beyond slack",
			local:    t0,
			remote:   t0.Add(90 * time.Second),
			expected: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := HasConflict(tc.local, tc.remote, tc.lastSync)
			assert.Equal(t, got, tc.expected, "conflict predicate mismatch")
		})
	}
}

func TestTwoDeviceMergeScenario(t *testing.T) {
	// device A sets weight=180 lbs at T=10; device B sets a note at T=12.
	// B's timestamp wins as base; the weight falls back to A's.
	deviceA := database.BodyMetric{
		ID:         "bm-1",
		UserID:     "user-1",
		Weight:     floatVal(180),
		WeightUnit: "lbs",
		UpdatedAt:  t0.Add(10 * time.Second),
	}
	deviceB := database.BodyMetric{
		ID:        "bm-1",
		UserID:    "user-1",
		Notes:     "post-workout",
		UpdatedAt: t0.Add(12 * time.Second),
	}

	got := ResolveBodyMetric(StrategyMerge, deviceA, deviceB)

	assert.Equal(t, *got.Weight, float64(180), "weight mismatch")
	assert.Equal(t, got.Notes, "post-workout", "notes mismatch")
	assert.Equal(t, got.UpdatedAt, deviceB.UpdatedAt, "merged record keeps the base timestamp")
}
