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

package login

import (
	gocontext "context"
	"fmt"
	"net/url"

	"github.com/logyourbody/logyourbody/pkg/cli/client"
	"github.com/logyourbody/logyourbody/pkg/cli/consts"
	"github.com/logyourbody/logyourbody/pkg/cli/context"
	"github.com/logyourbody/logyourbody/pkg/cli/database"
	"github.com/logyourbody/logyourbody/pkg/cli/infra"
	"github.com/logyourbody/logyourbody/pkg/cli/log"
	"github.com/logyourbody/logyourbody/pkg/cli/ui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var example = `
  logyourbody login`

var apiEndpointFlag string

// NewCmd returns a new login command
func NewCmd(ctx context.LybCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "login",
		Short:   "Login to the server",
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.StringVar(&apiEndpointFlag, "apiEndpoint", "", "API endpoint to connect to (defaults to value in config)")

	return cmd
}

// getServerDisplayURL derives a user-facing URL from the API endpoint
func getServerDisplayURL(ctx context.LybCtx) string {
	u, err := url.Parse(ctx.APIEndpoint)
	if err != nil {
		return ""
	}
	if u.Scheme == "" || u.Host == "" {
		return ""
	}

	return fmt.Sprintf("%s://%s", u.Scheme, u.Host)
}

// Do performs login
func Do(ctx context.LybCtx, email, password string) error {
	c := client.New(ctx.APIEndpoint, "", ctx.HTTPClient)

	resp, err := c.Signin(gocontext.Background(), email, password)
	if err != nil {
		return errors.Wrap(err, "requesting signin")
	}

	db := ctx.DB
	if err := database.UpdateSystem(db, consts.SystemSessionKey, resp.Key); err != nil {
		return errors.Wrap(err, "saving session key")
	}
	if err := database.UpdateSystem(db, consts.SystemSessionKeyExpiry, resp.Expiry); err != nil {
		return errors.Wrap(err, "saving session key expiry")
	}
	if err := database.UpdateSystem(db, consts.SystemUserID, resp.UserID); err != nil {
		return errors.Wrap(err, "saving user id")
	}

	return nil
}

func newRun(ctx context.LybCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		if apiEndpointFlag != "" {
			ctx.APIEndpoint = apiEndpointFlag
		}

		if displayURL := getServerDisplayURL(ctx); displayURL != "" {
			log.Infof("logging in to %s\n", displayURL)
		}

		var email, password string
		if err := ui.PromptInput("email", &email); err != nil {
			return errors.Wrap(err, "getting email input")
		}
		if email == "" {
			return errors.New("email is empty")
		}

		if err := ui.PromptPassword("password", &password); err != nil {
			return errors.Wrap(err, "getting password input")
		}
		if password == "" {
			return errors.New("password is empty")
		}

		if err := Do(ctx, email, password); err != nil {
			return errors.Wrap(err, "logging in")
		}

		log.Success("logged in\n")

		return nil
	}
}
