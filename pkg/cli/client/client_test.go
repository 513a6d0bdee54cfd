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

package client

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/logyourbody/logyourbody/pkg/assert"
	"github.com/logyourbody/logyourbody/pkg/cli/database"
	"github.com/pkg/errors"
)

func TestGetMe(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(User{ID: "user-1", Email: "sam@example.com"})
	}))
	defer server.Close()

	c := New(server.URL, "session-key", server.Client())

	user, err := c.GetMe(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, user.ID, "user-1", "user id mismatch")
	assert.Equal(t, gotAuth, "Bearer session-key", "authorization header mismatch")
}

func TestGetMeNotAuthenticated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := New(server.URL, "expired-key", server.Client())

	_, err := c.GetMe(context.Background())

	assert.Equal(t, errors.Cause(err), ErrNotAuthenticated, "error mismatch")
}

func TestGetBodyMetricAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	c := New(server.URL, "session-key", server.Client())

	got, err := c.GetBodyMetric(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}

	if got != nil {
		t.Errorf("absent record should yield nil. Actual: %+v.", got)
	}
}

func TestUpsertBodyMetricNormalizesWeight(t *testing.T) {
	var received database.BodyMetric
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.Method, http.MethodPut, "method mismatch")
		assert.Equal(t, r.URL.Path, "/v1/body-metrics/bm-1", "path mismatch")

		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatal(err)
		}
	}))
	defer server.Close()

	c := New(server.URL, "session-key", server.Client())

	weight := 180.0
	m := database.BodyMetric{
		ID:         "bm-1",
		UserID:     "user-1",
		Date:       time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),
		Weight:     &weight,
		WeightUnit: "lbs",
	}
	if err := c.UpsertBodyMetric(context.Background(), m); err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, received.WeightUnit, "kg", "weight should be pushed in the canonical unit")
	if math.Abs(*received.Weight-81.6466266) > 1e-4 {
		t.Errorf("normalized weight mismatch. Actual: %f.", *received.Weight)
	}

	// the caller's copy is untouched
	assert.Equal(t, m.WeightUnit, "lbs", "the local record keeps its native unit")
	assert.Equal(t, *m.Weight, 180.0, "the local record keeps its native value")
}

func TestUpsertServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(server.URL, "session-key", server.Client())

	err := c.UpsertDailyMetric(context.Background(), database.DailyMetric{ID: "dm-1"})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError. Actual: %v.", err)
	}
	assert.Equal(t, httpErr.StatusCode, http.StatusInternalServerError, "status code mismatch")
	assert.Equal(t, httpErr.IsAuth(), false, "a server error is not an auth error")
}
