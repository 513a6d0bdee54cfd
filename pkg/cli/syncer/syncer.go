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

// Package syncer orchestrates the sync protocol between the local store and
// the remote store. The Manager is the only stateful, side-effecting piece of
// the sync core; its lifecycle spans the authenticated session.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/logyourbody/logyourbody/pkg/cli/client"
	"github.com/logyourbody/logyourbody/pkg/cli/conflict"
	"github.com/logyourbody/logyourbody/pkg/cli/consts"
	"github.com/logyourbody/logyourbody/pkg/cli/database"
	"github.com/logyourbody/logyourbody/pkg/cli/log"
	"github.com/logyourbody/logyourbody/pkg/cli/netwatch"
	"github.com/logyourbody/logyourbody/pkg/cli/utils"
	"github.com/logyourbody/logyourbody/pkg/clock"
	"github.com/logyourbody/logyourbody/pkg/units"
	"github.com/pkg/errors"
)

// ErrPartialFailure indicates that at least one record failed to push during a
// pass. Records that did succeed are marked synced; the rest stay pending and
// are retried on the next pass.
var ErrPartialFailure = errors.New("some records failed to sync")

// Status is the lifecycle state of the sync protocol
type Status string

const (
	// StatusIdle means no pass is in flight
	StatusIdle Status = "idle"
	// StatusSyncing means a pass is in flight
	StatusSyncing Status = "syncing"
	// StatusSuccess means the last pass pushed every pending record.
	// It is momentary; the status returns to idle immediately after.
	StatusSuccess Status = "success"
	// StatusError means the last pass failed in whole or in part.
	// It is momentary; the status returns to idle immediately after.
	StatusError Status = "error"
)

// State is the snapshot published to subscribers
type State struct {
	IsSyncing        bool
	LastSyncDate     time.Time
	Status           Status
	PendingSyncCount int
	IsOnline         bool
	Error            string
}

// Listener receives state snapshots. It is invoked with the current state on
// subscription and again on every change.
type Listener func(State)

// Remote is the contract the sync manager needs from the remote store: an
// authenticated-user lookup plus idempotent get/upsert by identifier for each
// record kind. Get methods return nil for absent records.
type Remote interface {
	GetMe(ctx context.Context) (client.User, error)
	GetProfile(ctx context.Context, id string) (*database.Profile, error)
	UpsertProfile(ctx context.Context, p database.Profile) error
	GetBodyMetric(ctx context.Context, id string) (*database.BodyMetric, error)
	UpsertBodyMetric(ctx context.Context, m database.BodyMetric) error
	GetDailyMetric(ctx context.Context, id string) (*database.DailyMetric, error)
	UpsertDailyMetric(ctx context.Context, m database.DailyMetric) error
}

// Options configures a Manager
type Options struct {
	// Strategy decides conflicts when both sides changed. Defaults to
	// last-write-wins.
	Strategy conflict.Strategy
	// Interval is the periodic sync cadence. Defaults to 5 minutes.
	Interval time.Duration
	// PushTimeout bounds each per-record network operation so a hung call
	// cannot hold up a pass indefinitely. Defaults to 30 seconds.
	PushTimeout time.Duration
}

// Manager owns the sync protocol state machine. Construct one per session
// with NewManager and release it with Destroy at session end.
type Manager struct {
	db       *database.DB
	remote   Remote
	monitor  netwatch.Monitor
	clock    clock.Clock
	strategy conflict.Strategy

	interval    time.Duration
	pushTimeout time.Duration

	mu        sync.Mutex
	state     State
	listeners map[int]Listener
	nextID    int
	destroyed bool

	unwatch  func()
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewManager returns a started manager. It subscribes to the connectivity
// monitor and begins the periodic sync timer immediately.
func NewManager(db *database.DB, remote Remote, monitor netwatch.Monitor, clk clock.Clock, opts Options) *Manager {
	if opts.Strategy == "" {
		opts.Strategy = conflict.DefaultStrategy
	}
	if opts.Interval == 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.PushTimeout == 0 {
		opts.PushTimeout = 30 * time.Second
	}

	m := &Manager{
		db:          db,
		remote:      remote,
		monitor:     monitor,
		clock:       clk,
		strategy:    opts.Strategy,
		interval:    opts.Interval,
		pushTimeout: opts.PushTimeout,
		listeners:   map[int]Listener{},
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}

	m.state = State{
		Status:   StatusIdle,
		IsOnline: monitor.IsOnline(),
	}
	if count, err := database.PendingCount(db); err == nil {
		m.state.PendingSyncCount = count
	}

	m.unwatch = monitor.Subscribe(m.handleConnectivity)
	go m.runPeriodic()

	return m
}

func (m *Manager) runPeriodic() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.SyncIfNeeded(context.Background()); err != nil {
				log.Debug("periodic sync: %v\n", err)
			}
		case <-m.stop:
			return
		}
	}
}

// handleConnectivity reacts to online/offline transitions. Regaining
// connectivity triggers a background sync of whatever queued up while offline.
func (m *Manager) handleConnectivity(online bool) {
	m.publish(func(s *State) {
		s.IsOnline = online
	})

	if online {
		go func() {
			if err := m.SyncIfNeeded(context.Background()); err != nil {
				log.Debug("sync on reconnect: %v\n", err)
			}
		}()
	}
}

// Subscribe registers a listener, invokes it immediately with the current
// state, and returns an unsubscribe function. Multiple independent
// subscribers are supported.
func (m *Manager) Subscribe(l Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	snapshot := m.state
	m.mu.Unlock()

	l(snapshot)

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// publish applies the mutation to the state and notifies every listener
func (m *Manager) publish(mutate func(*State)) {
	m.mu.Lock()
	mutate(&m.state)
	snapshot := m.state
	fns := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		fns = append(fns, l)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

// CurrentState returns a snapshot of the published state
func (m *Manager) CurrentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// currentUserID returns the locally cached authenticated user id, or an empty
// string. The cache is written at login so that offline writes never need the
// network.
func (m *Manager) currentUserID() string {
	var ret string
	err := database.GetSystem(m.db, consts.SystemUserID, &ret)
	if err != nil && err != database.ErrNotFound {
		log.Debug("reading cached user id: %v\n", err)
	}

	return ret
}

// beginPass atomically claims the syncing state. It returns false if a pass
// is already in flight, the device is offline, or the manager was destroyed;
// the check and the set happen under one lock so there is no race window
// between them.
func (m *Manager) beginPass() bool {
	m.mu.Lock()
	if m.destroyed || m.state.IsSyncing || !m.state.IsOnline {
		m.mu.Unlock()
		return false
	}
	m.state.IsSyncing = true
	m.state.Status = StatusSyncing
	m.state.Error = ""
	snapshot := m.state
	fns := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		fns = append(fns, l)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}

	return true
}

// endPass publishes the outcome of a pass. Success and error are observed as
// momentary states; the status then returns to idle synchronously.
func (m *Manager) endPass(passErr error, completed bool) {
	count, err := database.PendingCount(m.db)
	if err != nil {
		log.Debug("recomputing pending count: %v\n", err)
		count = -1
	}

	m.publish(func(s *State) {
		s.IsSyncing = false
		if count >= 0 {
			s.PendingSyncCount = count
		}
		if passErr != nil {
			s.Status = StatusError
			s.Error = passErr.Error()
		} else {
			s.Status = StatusSuccess
			s.Error = ""
		}
		if completed {
			s.LastSyncDate = m.clock.Now()
		}
	})

	m.publish(func(s *State) {
		s.Status = StatusIdle
	})
}

// SyncAll triggers one sync pass immediately and returns once the pass
// completes, so callers observe the final state. A concurrent trigger while a
// pass is in flight is a no-op. No pass is attempted while offline.
func (m *Manager) SyncAll(ctx context.Context) error {
	if !m.beginPass() {
		return nil
	}

	completed, passErr := m.runPass(ctx)
	m.endPass(passErr, completed)

	return passErr
}

// SyncIfNeeded triggers SyncAll only if there is at least one pending record
// and the device is online. It is the entry point for the periodic timer and
// the connectivity-regained trigger, avoiding needless empty passes.
func (m *Manager) SyncIfNeeded(ctx context.Context) error {
	m.mu.Lock()
	if m.destroyed || m.state.IsSyncing || !m.state.IsOnline {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	count, err := database.PendingCount(m.db)
	if err != nil {
		return errors.Wrap(err, "counting pending records")
	}
	if count == 0 {
		return nil
	}

	return m.SyncAll(ctx)
}

// runPass executes the per-pass algorithm. The first return value reports
// whether the pass got far enough to process records; pass-level aborts
// (authentication, storage) return false and mark nothing synced.
func (m *Manager) runPass(ctx context.Context) (bool, error) {
	userCtx, cancel := context.WithTimeout(ctx, m.pushTimeout)
	user, err := m.remote.GetMe(userCtx)
	cancel()
	if err != nil {
		return false, errors.Wrap(err, "reading the authenticated user")
	}

	items, err := database.GetUnsynced(m.db)
	if err != nil {
		return false, errors.Wrap(err, "reading unsynced records")
	}

	lastSync := m.lastSyncAt()

	// Processing order is profiles, then body metrics, then daily metrics.
	// A stable order aids debuggability; one failing record never blocks
	// the rest.
	hasErrors := false
	for i := range items.Profiles {
		if err := m.pushProfile(ctx, user.ID, items.Profiles[i], lastSync); err != nil {
			log.Debug("pushing profile %s: %v\n", items.Profiles[i].ID, err)
			hasErrors = true
		}
	}
	for i := range items.BodyMetrics {
		if err := m.pushBodyMetric(ctx, user.ID, items.BodyMetrics[i], lastSync); err != nil {
			log.Debug("pushing body metric %s: %v\n", items.BodyMetrics[i].ID, err)
			hasErrors = true
		}
	}
	for i := range items.DailyMetrics {
		if err := m.pushDailyMetric(ctx, user.ID, items.DailyMetrics[i], lastSync); err != nil {
			log.Debug("pushing daily metric %s: %v\n", items.DailyMetrics[i].ID, err)
			hasErrors = true
		}
	}

	now := m.clock.Now()
	if err := database.UpdateSystem(m.db, consts.SystemLastSyncAt, now.UnixMilli()); err != nil {
		log.Debug("saving last sync time: %v\n", err)
	}

	if hasErrors {
		return true, ErrPartialFailure
	}

	return true, nil
}

// lastSyncAt returns the time of the last completed pass, or nil if the
// client has never synced
func (m *Manager) lastSyncAt() *time.Time {
	var ms int64
	err := database.GetSystem(m.db, consts.SystemLastSyncAt, &ms)
	if err != nil || ms == 0 {
		return nil
	}

	t := time.UnixMilli(ms).UTC()
	return &t
}

func (m *Manager) pushProfile(ctx context.Context, userID string, p database.Profile, lastSync *time.Time) error {
	pushCtx, cancel := context.WithTimeout(ctx, m.pushTimeout)
	defer cancel()

	seen := p.UpdatedAt
	p.ID = userID

	remoteCopy, err := m.remote.GetProfile(pushCtx, p.ID)
	if err != nil {
		return errors.Wrap(err, "reading remote copy")
	}

	resolved := false
	if remoteCopy != nil && conflict.HasConflict(p.UpdatedAt, remoteCopy.UpdatedAt, lastSync) {
		p = conflict.ResolveProfile(m.strategy, p, *remoteCopy)
		resolved = true
	}

	now := m.clock.Now()
	p.UpdatedAt = now

	if err := m.remote.UpsertProfile(pushCtx, p); err != nil {
		return errors.Wrap(err, "upserting")
	}

	if resolved {
		// persist the reconciled copy locally so both stores converge
		if err := database.SaveProfile(m.db, now, &p); err != nil {
			return errors.Wrap(err, "saving resolved copy")
		}
		seen = now
	}

	ok, err := database.MarkProfileSynced(m.db, p.ID, seen, now)
	if err != nil {
		return errors.Wrap(err, "marking synced")
	}
	if !ok {
		log.Debug("profile %s was modified mid-push; leaving pending\n", p.ID)
	}

	return nil
}

func (m *Manager) pushBodyMetric(ctx context.Context, userID string, bm database.BodyMetric, lastSync *time.Time) error {
	pushCtx, cancel := context.WithTimeout(ctx, m.pushTimeout)
	defer cancel()

	seen := bm.UpdatedAt
	bm.UserID = userID

	remoteCopy, err := m.remote.GetBodyMetric(pushCtx, bm.ID)
	if err != nil {
		return errors.Wrap(err, "reading remote copy")
	}

	resolved := false
	if remoteCopy != nil && conflict.HasConflict(bm.UpdatedAt, remoteCopy.UpdatedAt, lastSync) {
		bm = conflict.ResolveBodyMetric(m.strategy, bm, *remoteCopy)
		resolved = true
	}

	now := m.clock.Now()
	bm.UpdatedAt = now

	if err := m.remote.UpsertBodyMetric(pushCtx, bm); err != nil {
		return errors.Wrap(err, "upserting")
	}

	if resolved {
		if err := database.SaveBodyMetric(m.db, now, &bm); err != nil {
			return errors.Wrap(err, "saving resolved copy")
		}
		seen = now
	}

	ok, err := database.MarkBodyMetricSynced(m.db, bm.ID, seen, now)
	if err != nil {
		return errors.Wrap(err, "marking synced")
	}
	if !ok {
		log.Debug("body metric %s was modified mid-push; leaving pending\n", bm.ID)
	}

	return nil
}

func (m *Manager) pushDailyMetric(ctx context.Context, userID string, dm database.DailyMetric, lastSync *time.Time) error {
	pushCtx, cancel := context.WithTimeout(ctx, m.pushTimeout)
	defer cancel()

	seen := dm.UpdatedAt
	dm.UserID = userID

	remoteCopy, err := m.remote.GetDailyMetric(pushCtx, dm.ID)
	if err != nil {
		return errors.Wrap(err, "reading remote copy")
	}

	resolved := false
	if remoteCopy != nil && conflict.HasConflict(dm.UpdatedAt, remoteCopy.UpdatedAt, lastSync) {
		dm = conflict.ResolveDailyMetric(m.strategy, dm, *remoteCopy)
		resolved = true
	}

	now := m.clock.Now()
	dm.UpdatedAt = now

	if err := m.remote.UpsertDailyMetric(pushCtx, dm); err != nil {
		return errors.Wrap(err, "upserting")
	}

	if resolved {
		if err := database.SaveDailyMetric(m.db, now, &dm); err != nil {
			return errors.Wrap(err, "saving resolved copy")
		}
		seen = now
	}

	ok, err := database.MarkDailyMetricSynced(m.db, dm.ID, seen, now)
	if err != nil {
		return errors.Wrap(err, "marking synced")
	}
	if !ok {
		log.Debug("daily metric %s was modified mid-push; leaving pending\n", dm.ID)
	}

	return nil
}

// refreshPendingCount recomputes and publishes the pending count
func (m *Manager) refreshPendingCount() {
	count, err := database.PendingCount(m.db)
	if err != nil {
		log.Debug("recomputing pending count: %v\n", err)
		return
	}

	m.publish(func(s *State) {
		s.PendingSyncCount = count
	})
}

// backgroundSync kicks off a best-effort sync without blocking the caller.
// Its errors are routed into the published state only, never to the caller.
func (m *Manager) backgroundSync() {
	go func() {
		if err := m.SyncIfNeeded(context.Background()); err != nil {
			log.Debug("background sync: %v\n", err)
		}
	}()
}

// LogWeight records a weight measurement. The write is local and synchronous
// so the caller never waits on the network; a best-effort sync is kicked off
// in the background.
func (m *Manager) LogWeight(weight float64, unit, notes string) (database.BodyMetric, error) {
	var ret database.BodyMetric

	userID := m.currentUserID()
	if userID == "" {
		return ret, client.ErrNotAuthenticated
	}
	if !units.ValidWeightUnit(unit) {
		return ret, errors.Errorf("unknown weight unit %q", unit)
	}

	id, err := utils.GenerateUUID()
	if err != nil {
		return ret, errors.Wrap(err, "generating an id")
	}

	now := m.clock.Now()
	ret = database.BodyMetric{
		ID:         id,
		UserID:     userID,
		Date:       now,
		Weight:     &weight,
		WeightUnit: unit,
		Notes:      notes,
	}

	if err := database.SaveBodyMetric(m.db, now, &ret); err != nil {
		return ret, errors.Wrap(err, "saving body metric")
	}

	m.refreshPendingCount()
	m.backgroundSync()

	return ret, nil
}

// LogDailyMetrics records the day's step count and/or note. A user has at
// most one entry per calendar day; repeated calls update it in place.
func (m *Manager) LogDailyMetrics(steps *int64, notes string) (database.DailyMetric, error) {
	var ret database.DailyMetric

	userID := m.currentUserID()
	if userID == "" {
		return ret, client.ErrNotAuthenticated
	}

	now := m.clock.Now()
	date := database.DailyDate(now)

	existing, err := database.GetDailyMetricByDate(m.db, userID, date)
	if err != nil && err != database.ErrNotFound {
		return ret, errors.Wrap(err, "reading today's entry")
	}

	if err == nil {
		ret = existing
		if steps != nil {
			ret.Steps = steps
		}
		if notes != "" {
			ret.Notes = notes
		}
		ret.UpdatedAt = now
	} else {
		id, err := utils.GenerateUUID()
		if err != nil {
			return ret, errors.Wrap(err, "generating an id")
		}

		ret = database.DailyMetric{
			ID:     id,
			UserID: userID,
			Date:   date,
			Steps:  steps,
			Notes:  notes,
		}
	}

	if err := database.SaveDailyMetric(m.db, now, &ret); err != nil {
		return ret, errors.Wrap(err, "saving daily metric")
	}

	m.refreshPendingCount()
	m.backgroundSync()

	return ret, nil
}

// GetLocalBodyMetrics reads the current user's body metric entries from the
// local store. It returns nil rather than erroring when no user is
// authenticated; callers render optimistically from whatever is local.
func (m *Manager) GetLocalBodyMetrics(from, to *time.Time) ([]database.BodyMetric, error) {
	userID := m.currentUserID()
	if userID == "" {
		return nil, nil
	}

	return database.GetBodyMetricsInRange(m.db, userID, from, to)
}

// GetLocalDailyMetrics reads the current user's daily metric entry for the
// given date from the local store, or nil if absent or unauthenticated
func (m *Manager) GetLocalDailyMetrics(date time.Time) (*database.DailyMetric, error) {
	userID := m.currentUserID()
	if userID == "" {
		return nil, nil
	}

	ret, err := database.GetDailyMetricByDate(m.db, userID, database.DailyDate(date))
	if err == database.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &ret, nil
}

// ClearAllData wipes the local store and resets the manager to its initial
// idle, zero-pending condition. Called on logout.
func (m *Manager) ClearAllData() error {
	if err := database.ClearAll(m.db); err != nil {
		return errors.Wrap(err, "clearing the local store")
	}
	if err := database.DeleteSystem(m.db, consts.SystemLastSyncAt); err != nil {
		return errors.Wrap(err, "clearing the last sync time")
	}

	m.publish(func(s *State) {
		s.LastSyncDate = time.Time{}
		s.Status = StatusIdle
		s.PendingSyncCount = 0
		s.Error = ""
	})

	return nil
}

// Destroy releases the periodic timer, the connectivity subscription and all
// listeners. Idempotent.
func (m *Manager) Destroy() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.destroyed = true
		m.listeners = map[int]Listener{}
		m.mu.Unlock()

		m.unwatch()
		close(m.stop)
		<-m.done
	})
}
