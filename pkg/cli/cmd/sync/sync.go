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

package sync

import (
	gocontext "context"

	"github.com/logyourbody/logyourbody/pkg/cli/client"
	"github.com/logyourbody/logyourbody/pkg/cli/context"
	"github.com/logyourbody/logyourbody/pkg/cli/infra"
	"github.com/logyourbody/logyourbody/pkg/cli/log"
	"github.com/logyourbody/logyourbody/pkg/cli/syncer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var example = `
  logyourbody sync`

var apiEndpointFlag string

// NewCmd returns a new sync command
func NewCmd(ctx context.LybCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sync",
		Aliases: []string{"s"},
		Short:   "Sync data with the server",
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.StringVar(&apiEndpointFlag, "apiEndpoint", "", "API endpoint to connect to (defaults to value in config)")

	return cmd
}

func newRun(ctx context.LybCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		if ctx.SessionKey == "" {
			log.Error("not logged in. Please run `logyourbody login`\n")
			return nil
		}
		if apiEndpointFlag != "" {
			ctx.APIEndpoint = apiEndpointFlag
		}

		manager, release, err := infra.NewSyncManager(ctx)
		if err != nil {
			return errors.Wrap(err, "setting up sync")
		}
		defer release()

		state := manager.CurrentState()
		if !state.IsOnline {
			log.Error("the server is unreachable. Entries will sync on the next run\n")
			return nil
		}

		log.Infof("syncing %d entries\n", state.PendingSyncCount)

		err = manager.SyncAll(gocontext.Background())
		if errors.Cause(err) == client.ErrNotAuthenticated {
			log.Error("your session has expired. Please run `logyourbody login`\n")
			return nil
		} else if errors.Cause(err) == syncer.ErrPartialFailure {
			state = manager.CurrentState()
			log.Warnf("synced with errors. %d entries still pending\n", state.PendingSyncCount)
			return nil
		} else if err != nil {
			return errors.Wrap(err, "syncing")
		}

		log.Success("success\n")

		return nil
	}
}
