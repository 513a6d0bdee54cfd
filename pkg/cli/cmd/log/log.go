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

package log

import (
	gocontext "context"
	"strconv"

	"github.com/logyourbody/logyourbody/pkg/cli/client"
	"github.com/logyourbody/logyourbody/pkg/cli/context"
	"github.com/logyourbody/logyourbody/pkg/cli/infra"
	"github.com/logyourbody/logyourbody/pkg/cli/log"
	"github.com/logyourbody/logyourbody/pkg/units"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var example = `
 * Log a weight in your configured unit
 logyourbody log 81.5

 * Log a weight in pounds with a note
 logyourbody log 180 --unit lbs --notes "after vacation"`

var unitFlag string
var notesFlag string

// NewCmd returns a new log command
func NewCmd(ctx context.LybCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "log",
		Short:   "Log a weight entry",
		Example: example,
		Args:    cobra.ExactArgs(1),
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.StringVarP(&unitFlag, "unit", "u", units.WeightKg, "the weight unit (kg or lbs)")
	f.StringVarP(&notesFlag, "notes", "n", "", "an optional note for the entry")

	return cmd
}

func newRun(ctx context.LybCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		weight, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return errors.Wrapf(err, "parsing weight %q", args[0])
		}

		manager, release, err := infra.NewSyncManager(ctx)
		if err != nil {
			return errors.Wrap(err, "setting up sync")
		}
		defer release()

		entry, err := manager.LogWeight(weight, unitFlag, notesFlag)
		if errors.Cause(err) == client.ErrNotAuthenticated {
			log.Error("not logged in. Please run `logyourbody login`\n")
			return nil
		} else if err != nil {
			return errors.Wrap(err, "logging weight")
		}

		log.Successf("logged %s %s\n", args[0], unitFlag)

		// push eagerly so a short-lived process still syncs; if offline,
		// the entry stays queued for the next run
		if err := manager.SyncIfNeeded(gocontext.Background()); err != nil {
			log.Debug("syncing after log: %v\n", err)
		}

		state := manager.CurrentState()
		if state.PendingSyncCount > 0 {
			log.Infof("%d entries queued for sync\n", state.PendingSyncCount)
		} else {
			log.Debug("entry %s synced\n", entry.ID)
		}

		return nil
	}
}
