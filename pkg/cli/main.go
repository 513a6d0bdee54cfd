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

package main

import (
	"os"
	"strings"

	"github.com/logyourbody/logyourbody/pkg/cli/infra"
	"github.com/logyourbody/logyourbody/pkg/cli/log"
	"github.com/pkg/errors"

	// commands
	logcmd "github.com/logyourbody/logyourbody/pkg/cli/cmd/log"
	"github.com/logyourbody/logyourbody/pkg/cli/cmd/login"
	"github.com/logyourbody/logyourbody/pkg/cli/cmd/logout"
	"github.com/logyourbody/logyourbody/pkg/cli/cmd/root"
	"github.com/logyourbody/logyourbody/pkg/cli/cmd/status"
	"github.com/logyourbody/logyourbody/pkg/cli/cmd/steps"
	"github.com/logyourbody/logyourbody/pkg/cli/cmd/sync"
	"github.com/logyourbody/logyourbody/pkg/cli/cmd/version"
)

// apiEndpoint and versionTag are populated during link time
var apiEndpoint string
var versionTag = "master"

// parseDBPath extracts --dbPath flag value from command line arguments
// regardless of where it appears (before or after subcommand).
// Returns empty string if not found.
func parseDBPath(args []string) string {
	for i, arg := range args {
		if strings.HasPrefix(arg, "--dbPath=") {
			return strings.TrimPrefix(arg, "--dbPath=")
		}
		if arg == "--dbPath" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func main() {
	// Parse --dbPath manually because it can appear after the subcommand
	// (e.g., "logyourbody sync --dbPath=./custom.db") and root.ParseFlags
	// only parses flags before the subcommand.
	dbPath := parseDBPath(os.Args[1:])

	ctx, err := infra.Init(versionTag, apiEndpoint, dbPath)
	if err != nil {
		panic(errors.Wrap(err, "initializing context"))
	}
	defer ctx.DB.Close()

	root.Register(login.NewCmd(*ctx))
	root.Register(logout.NewCmd(*ctx))
	root.Register(logcmd.NewCmd(*ctx))
	root.Register(steps.NewCmd(*ctx))
	root.Register(sync.NewCmd(*ctx))
	root.Register(status.NewCmd(*ctx))
	root.Register(version.NewCmd(*ctx))

	if err := root.Execute(); err != nil {
		log.Errorf("%s\n", err.Error())
		os.Exit(1)
	}
}
