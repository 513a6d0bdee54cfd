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

package infra

import (
	"time"

	"github.com/logyourbody/logyourbody/pkg/cli/client"
	"github.com/logyourbody/logyourbody/pkg/cli/config"
	"github.com/logyourbody/logyourbody/pkg/cli/conflict"
	"github.com/logyourbody/logyourbody/pkg/cli/context"
	"github.com/logyourbody/logyourbody/pkg/cli/netwatch"
	"github.com/logyourbody/logyourbody/pkg/cli/syncer"
	"github.com/pkg/errors"
)

const connectivityProbeInterval = time.Minute

// NewSyncManager builds a sync manager for the session described by the
// context, along with a release function that tears down both the manager and
// its connectivity probe.
func NewSyncManager(ctx context.LybCtx) (*syncer.Manager, func(), error) {
	cf, err := config.Read(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading config")
	}

	strategy, err := conflict.ParseStrategy(cf.ConflictStrategy)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parsing conflict strategy")
	}

	c := client.New(ctx.APIEndpoint, ctx.SessionKey, ctx.HTTPClient)
	monitor := netwatch.NewProbe(c.Ping, connectivityProbeInterval)

	manager := syncer.NewManager(ctx.DB, c, monitor, ctx.Clock, syncer.Options{
		Strategy: strategy,
		Interval: time.Duration(cf.SyncIntervalMinutes) * time.Minute,
	})

	release := func() {
		manager.Destroy()
		monitor.Close()
	}

	return manager, release, nil
}
