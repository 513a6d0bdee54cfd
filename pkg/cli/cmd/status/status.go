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

package status

import (
	"time"

	"github.com/logyourbody/logyourbody/pkg/cli/consts"
	"github.com/logyourbody/logyourbody/pkg/cli/context"
	"github.com/logyourbody/logyourbody/pkg/cli/database"
	"github.com/logyourbody/logyourbody/pkg/cli/infra"
	"github.com/logyourbody/logyourbody/pkg/cli/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var example = `
  logyourbody status`

// NewCmd returns a new status command
func NewCmd(ctx context.LybCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show the sync status",
		Example: example,
		RunE:    newRun(ctx),
	}

	return cmd
}

func newRun(ctx context.LybCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		if ctx.SessionKey == "" {
			log.Plain("logged in: no\n")
			return nil
		}

		manager, release, err := infra.NewSyncManager(ctx)
		if err != nil {
			return errors.Wrap(err, "setting up sync")
		}
		defer release()

		state := manager.CurrentState()

		log.Plain("logged in: yes\n")
		if state.IsOnline {
			log.Plain("server: reachable\n")
		} else {
			log.Plain("server: unreachable\n")
		}

		items, err := database.GetUnsynced(ctx.DB)
		if err != nil {
			return errors.Wrap(err, "reading unsynced entries")
		}
		log.Plainf("pending: %d (%d profiles, %d body metrics, %d daily metrics)\n",
			items.Total(), len(items.Profiles), len(items.BodyMetrics), len(items.DailyMetrics))

		var lastSyncMs int64
		err = database.GetSystem(ctx.DB, consts.SystemLastSyncAt, &lastSyncMs)
		if err != nil && err != database.ErrNotFound {
			return errors.Wrap(err, "reading last sync time")
		}
		if lastSyncMs == 0 {
			log.Plain("last synced: never\n")
		} else {
			log.Plainf("last synced: %s\n", time.UnixMilli(lastSyncMs).Local().Format("2006-01-02 15:04:05"))
		}

		return nil
	}
}
