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

// Package conflict decides which version of a record wins when the local and
// remote copies were modified independently. All functions are pure: no I/O,
// no shared state, safe to call any number of times with the same inputs.
package conflict

import (
	"time"

	"github.com/logyourbody/logyourbody/pkg/cli/database"
	"github.com/pkg/errors"
)

// Strategy selects how conflicts are resolved. It is configured per
// deployment, not per call.
type Strategy string

const (
	// StrategyLastWriteWins picks the side with the later updated_at in full
	StrategyLastWriteWins Strategy = "last-write-wins"
	// StrategyServerWins always picks the remote side
	StrategyServerWins Strategy = "server-wins"
	// StrategyClientWins always picks the local side
	StrategyClientWins Strategy = "client-wins"
	// StrategyMerge reconciles field by field, filling gaps from the losing side
	StrategyMerge Strategy = "merge"
)

// DefaultStrategy is used when no strategy is configured
const DefaultStrategy = StrategyLastWriteWins

// notesSeparator joins two differing non-empty notes during a merge. Keeping
// both is a product decision: silently dropping a note the user typed on
// another device is worse than a slightly awkward combined note.
const notesSeparator = "\n---\n"

// slack is the window within which two updated_at values are considered
// concurrent-equal when no last sync time is known. It absorbs clock skew and
// timestamp rounding, not logical concurrency.
const slack = time.Second

// ParseStrategy validates a strategy name from configuration
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyLastWriteWins, StrategyServerWins, StrategyClientWins, StrategyMerge:
		return Strategy(s), nil
	case "":
		return DefaultStrategy, nil
	}

	return "", errors.Errorf("unknown conflict strategy %q", s)
}

// localWins reports whether the local side wins a timestamp comparison.
// The comparison is strictly greater-than: a tie resolves to the remote side,
// since the remote store is the ultimate source of truth once synced.
func localWins(local, remote time.Time) bool {
	return local.After(remote)
}

// HasConflict reports whether the local and remote copies were modified
// independently. When lastSync is known, both sides must have been modified
// after it. Absent that, timestamps differing by more than the slack window
// are treated as a conflict. The predicate is advisory: callers may resolve
// unconditionally without consulting it.
func HasConflict(localUpdatedAt, remoteUpdatedAt time.Time, lastSync *time.Time) bool {
	if lastSync != nil {
		return localUpdatedAt.After(*lastSync) && remoteUpdatedAt.After(*lastSync)
	}

	diff := localUpdatedAt.Sub(remoteUpdatedAt)
	if diff < 0 {
		diff = -diff
	}

	return diff > slack
}

// ResolveProfile returns the profile that should be treated as current truth
func ResolveProfile(strategy Strategy, local, remote database.Profile) database.Profile {
	switch strategy {
	case StrategyServerWins:
		return remote
	case StrategyClientWins:
		return local
	case StrategyMerge:
		return mergeProfiles(local, remote)
	default:
		if localWins(local.UpdatedAt, remote.UpdatedAt) {
			return local
		}
		return remote
	}
}

// ResolveBodyMetric returns the body metric entry that should be treated as
// current truth
func ResolveBodyMetric(strategy Strategy, local, remote database.BodyMetric) database.BodyMetric {
	switch strategy {
	case StrategyServerWins:
		return remote
	case StrategyClientWins:
		return local
	case StrategyMerge:
		return mergeBodyMetrics(local, remote)
	default:
		if localWins(local.UpdatedAt, remote.UpdatedAt) {
			return local
		}
		return remote
	}
}

// ResolveDailyMetric returns the daily metric entry that should be treated as
// current truth
func ResolveDailyMetric(strategy Strategy, local, remote database.DailyMetric) database.DailyMetric {
	switch strategy {
	case StrategyServerWins:
		return remote
	case StrategyClientWins:
		return local
	case StrategyMerge:
		return mergeDailyMetrics(local, remote)
	default:
		if localWins(local.UpdatedAt, remote.UpdatedAt) {
			return local
		}
		return remote
	}
}

// fillFloat returns base if present, otherwise other
func fillFloat(base, other *float64) *float64 {
	if base != nil {
		return base
	}

	return other
}

// fillString returns base if non-empty, otherwise other
func fillString(base, other string) string {
	if base != "" {
		return base
	}

	return other
}

// mergeNotes combines two notes. Differing non-empty notes are concatenated
// rather than one replacing the other.
func mergeNotes(base, other string) string {
	if base == "" {
		return other
	}
	if other == "" || base == other {
		return base
	}

	return base + notesSeparator + other
}

// mergeBodyMetrics takes the time-winning side as the base and fills in any
// field absent on the base but present on the other side
func mergeBodyMetrics(local, remote database.BodyMetric) database.BodyMetric {
	base, other := remote, local
	if localWins(local.UpdatedAt, remote.UpdatedAt) {
		base, other = local, remote
	}

	ret := base
	ret.Weight = fillFloat(base.Weight, other.Weight)
	ret.WeightUnit = fillString(base.WeightUnit, other.WeightUnit)
	ret.BodyFatPercentage = fillFloat(base.BodyFatPercentage, other.BodyFatPercentage)
	ret.BodyFatMethod = fillString(base.BodyFatMethod, other.BodyFatMethod)
	ret.LeanMass = fillFloat(base.LeanMass, other.LeanMass)
	ret.BoneMass = fillFloat(base.BoneMass, other.BoneMass)
	ret.FatMass = fillFloat(base.FatMass, other.FatMass)
	ret.Waist = fillFloat(base.Waist, other.Waist)
	ret.Neck = fillFloat(base.Neck, other.Neck)
	ret.Hip = fillFloat(base.Hip, other.Hip)
	ret.PhotoURL = fillString(base.PhotoURL, other.PhotoURL)
	ret.Notes = mergeNotes(base.Notes, other.Notes)

	return ret
}

// mergeDailyMetrics merges like mergeBodyMetrics except the step count takes
// the maximum of both sides: a sync gap more likely means the other side
// observed additional steps, never fewer.
func mergeDailyMetrics(local, remote database.DailyMetric) database.DailyMetric {
	base, other := remote, local
	if localWins(local.UpdatedAt, remote.UpdatedAt) {
		base, other = local, remote
	}

	ret := base
	ret.Steps = maxSteps(base.Steps, other.Steps)
	ret.Notes = mergeNotes(base.Notes, other.Notes)

	return ret
}

func maxSteps(a, b *int64) *int64 {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if *b > *a {
		return b
	}

	return a
}

// mergeProfiles fills per-field from the losing side and merges the settings
// blob key by key with the base's keys taking precedence
func mergeProfiles(local, remote database.Profile) database.Profile {
	base, other := remote, local
	if localWins(local.UpdatedAt, remote.UpdatedAt) {
		base, other = local, remote
	}

	ret := base
	ret.Username = fillString(base.Username, other.Username)
	ret.FullName = fillString(base.FullName, other.FullName)
	ret.AvatarURL = fillString(base.AvatarURL, other.AvatarURL)
	ret.Bio = fillString(base.Bio, other.Bio)
	ret.Email = fillString(base.Email, other.Email)
	ret.Height = fillFloat(base.Height, other.Height)
	ret.HeightUnit = fillString(base.HeightUnit, other.HeightUnit)
	ret.DateOfBirth = fillString(base.DateOfBirth, other.DateOfBirth)
	ret.Gender = fillString(base.Gender, other.Gender)
	ret.GoalWeight = fillFloat(base.GoalWeight, other.GoalWeight)
	ret.GoalWeightUnit = fillString(base.GoalWeightUnit, other.GoalWeightUnit)
	ret.Settings = mergeSettings(base.Settings, other.Settings)

	return ret
}

// mergeSettings merges the enumerated known keys with base precedence. The
// notification flags follow the base wholesale since a false flag is a valid
// choice, not an absent value. Unknown extensible keys take a shallow union.
func mergeSettings(base, other database.Settings) database.Settings {
	ret := base
	ret.Units.Weight = fillString(base.Units.Weight, other.Units.Weight)
	ret.Units.Height = fillString(base.Units.Height, other.Units.Height)
	ret.Units.Measurements = fillString(base.Units.Measurements, other.Units.Measurements)

	if len(other.Extra) > 0 {
		merged := make(map[string]string, len(base.Extra)+len(other.Extra))
		for k, v := range other.Extra {
			merged[k] = v
		}
		for k, v := range base.Extra {
			merged[k] = v
		}
		ret.Extra = merged
	}

	return ret
}
