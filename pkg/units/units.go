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

// Package units provides conversions between measurement units
package units

// WeightKg is the canonical weight unit stored server-side
const WeightKg = "kg"

// WeightLbs is the imperial weight unit accepted from user input
const WeightLbs = "lbs"

const kgToLbs = 2.2046226218

// ConvertWeight converts a weight value between "kg" and "lbs".
// Returns v unchanged if from == to or if a unit is unrecognized.
func ConvertWeight(v float64, from, to string) float64 {
	if from == to {
		return v
	}
	if from == WeightKg && to == WeightLbs {
		return v * kgToLbs
	}
	if from == WeightLbs && to == WeightKg {
		return v / kgToLbs
	}

	return v
}

// NormalizeWeight converts a weight in the given unit to kilograms.
func NormalizeWeight(v float64, unit string) float64 {
	return ConvertWeight(v, unit, WeightKg)
}

// ValidWeightUnit reports whether the given unit is a supported weight unit.
func ValidWeightUnit(unit string) bool {
	return unit == WeightKg || unit == WeightLbs
}
