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

package logout

import (
	gocontext "context"

	"github.com/logyourbody/logyourbody/pkg/cli/client"
	"github.com/logyourbody/logyourbody/pkg/cli/consts"
	"github.com/logyourbody/logyourbody/pkg/cli/context"
	"github.com/logyourbody/logyourbody/pkg/cli/database"
	"github.com/logyourbody/logyourbody/pkg/cli/infra"
	"github.com/logyourbody/logyourbody/pkg/cli/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// ErrNotLoggedIn is an error for logging out when not logged in
var ErrNotLoggedIn = errors.New("not logged in")

var example = `
  logyourbody logout`

var apiEndpointFlag string

// NewCmd returns a new logout command
func NewCmd(ctx context.LybCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "logout",
		Short:   "Logout from the server and clear local data",
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.StringVar(&apiEndpointFlag, "apiEndpoint", "", "API endpoint to connect to (defaults to value in config)")

	return cmd
}

// Do performs logout. The local store is wiped so that the next account on
// this machine never sees another user's entries.
func Do(ctx context.LybCtx) error {
	db := ctx.DB

	var key string
	err := database.GetSystem(db, consts.SystemSessionKey, &key)
	if errors.Cause(err) == database.ErrNotFound {
		return ErrNotLoggedIn
	} else if err != nil {
		return errors.Wrap(err, "getting session key")
	}

	c := client.New(ctx.APIEndpoint, key, ctx.HTTPClient)
	if err := c.Signout(gocontext.Background()); err != nil {
		// the local session is cleared regardless; the server-side
		// session expires on its own
		log.Debug("requesting signout: %v\n", err)
	}

	if err := database.DeleteSystem(db, consts.SystemSessionKey); err != nil {
		return errors.Wrap(err, "deleting session key")
	}
	if err := database.DeleteSystem(db, consts.SystemSessionKeyExpiry); err != nil {
		return errors.Wrap(err, "deleting session key expiry")
	}
	if err := database.DeleteSystem(db, consts.SystemUserID); err != nil {
		return errors.Wrap(err, "deleting user id")
	}

	if err := database.ClearAll(db); err != nil {
		return errors.Wrap(err, "clearing local data")
	}
	if err := database.DeleteSystem(db, consts.SystemLastSyncAt); err != nil {
		return errors.Wrap(err, "clearing last sync time")
	}

	return nil
}

func newRun(ctx context.LybCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		if apiEndpointFlag != "" {
			ctx.APIEndpoint = apiEndpointFlag
		}

		err := Do(ctx)
		if err == ErrNotLoggedIn {
			log.Error("not logged in\n")
			return nil
		} else if err != nil {
			return errors.Wrap(err, "logging out")
		}

		log.Success("logged out\n")

		return nil
	}
}
