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

package steps

import (
	gocontext "context"
	"strconv"

	"github.com/logyourbody/logyourbody/pkg/cli/client"
	"github.com/logyourbody/logyourbody/pkg/cli/context"
	"github.com/logyourbody/logyourbody/pkg/cli/infra"
	"github.com/logyourbody/logyourbody/pkg/cli/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var example = `
 * Log today's step count
 logyourbody steps 8200

 * Attach a note to today's entry
 logyourbody steps 8200 --notes "long walk"`

var notesFlag string

// NewCmd returns a new steps command
func NewCmd(ctx context.LybCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "steps",
		Short:   "Log today's step count",
		Example: example,
		Args:    cobra.ExactArgs(1),
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.StringVarP(&notesFlag, "notes", "n", "", "an optional note for the entry")

	return cmd
}

func newRun(ctx context.LybCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		steps, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errors.Wrapf(err, "parsing step count %q", args[0])
		}
		if steps < 0 {
			return errors.New("step count cannot be negative")
		}

		manager, release, err := infra.NewSyncManager(ctx)
		if err != nil {
			return errors.Wrap(err, "setting up sync")
		}
		defer release()

		if _, err := manager.LogDailyMetrics(&steps, notesFlag); err != nil {
			if errors.Cause(err) == client.ErrNotAuthenticated {
				log.Error("not logged in. Please run `logyourbody login`\n")
				return nil
			}
			return errors.Wrap(err, "logging steps")
		}

		log.Successf("logged %s steps for today\n", args[0])

		if err := manager.SyncIfNeeded(gocontext.Background()); err != nil {
			log.Debug("syncing after log: %v\n", err)
		}

		state := manager.CurrentState()
		if state.PendingSyncCount > 0 {
			log.Infof("%d entries queued for sync\n", state.PendingSyncCount)
		}

		return nil
	}
}
