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

// Package infra provides operations and definitions for the
// local infrastructure for logyourbody
package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/logyourbody/logyourbody/pkg/cli/client"
	"github.com/logyourbody/logyourbody/pkg/cli/config"
	"github.com/logyourbody/logyourbody/pkg/cli/consts"
	"github.com/logyourbody/logyourbody/pkg/cli/context"
	"github.com/logyourbody/logyourbody/pkg/cli/database"
	"github.com/logyourbody/logyourbody/pkg/cli/log"
	"github.com/logyourbody/logyourbody/pkg/cli/utils"
	"github.com/logyourbody/logyourbody/pkg/clock"
	"github.com/logyourbody/logyourbody/pkg/dirs"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	// DefaultAPIEndpoint is the default API endpoint used when none is configured
	DefaultAPIEndpoint = "http://localhost:3001/api"
)

// RunEFunc is a function type of logyourbody commands
type RunEFunc func(*cobra.Command, []string) error

func getDBPath(paths context.Paths, customPath string) string {
	if customPath != "" {
		return customPath
	}

	return fmt.Sprintf("%s/%s/%s", paths.Data, consts.LybDirName, consts.LybDBFileName)
}

// newBaseCtx creates a minimal context with paths and database connection.
// This base context is used for file and database initialization before
// being enriched with config values by setupCtx.
func newBaseCtx(versionTag, customDBPath string) (context.LybCtx, error) {
	paths := context.Paths{
		Home:   dirs.Home,
		Config: dirs.ConfigHome,
		Data:   dirs.DataHome,
		Cache:  dirs.CacheHome,
	}

	if err := context.InitLybDirs(paths); err != nil {
		return context.LybCtx{}, errors.Wrap(err, "creating the logyourbody dirs")
	}

	dbPath := getDBPath(paths, customDBPath)

	db, err := database.Open(dbPath)
	if err != nil {
		return context.LybCtx{}, errors.Wrap(err, "connecting to db")
	}

	ctx := context.LybCtx{
		Paths:   paths,
		Version: versionTag,
		DB:      db,
	}

	return ctx, nil
}

// Init initializes the logyourbody environment and returns a new context.
// apiEndpoint is used when creating a new config file (e.g., from ldflags during tests)
func Init(versionTag, apiEndpoint, dbPath string) (*context.LybCtx, error) {
	ctx, err := newBaseCtx(versionTag, dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "initializing a context")
	}

	if err := initFiles(ctx, apiEndpoint); err != nil {
		return nil, errors.Wrap(err, "initializing files")
	}

	if err := database.InitSchema(ctx.DB); err != nil {
		return nil, errors.Wrap(err, "initializing database")
	}
	if err := InitSystem(ctx); err != nil {
		return nil, errors.Wrap(err, "initializing system data")
	}

	ctx, err = setupCtx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "setting up the context")
	}

	log.Debug("context: %+v\n", context.Redact(ctx))

	return &ctx, nil
}

// setupCtx enriches the base context with values from the env file, the
// config file and the database. This is called after files and database
// have been initialized.
func setupCtx(ctx context.LybCtx) (context.LybCtx, error) {
	loadEnvFile(ctx)

	db := ctx.DB

	var sessionKey string
	err := database.GetSystem(db, consts.SystemSessionKey, &sessionKey)
	if err != nil && err != database.ErrNotFound {
		return ctx, errors.Wrap(err, "finding session key")
	}

	var sessionKeyExpiry int64
	err = database.GetSystem(db, consts.SystemSessionKeyExpiry, &sessionKeyExpiry)
	if err != nil && err != database.ErrNotFound {
		return ctx, errors.Wrap(err, "finding session key expiry")
	}

	var userID string
	err = database.GetSystem(db, consts.SystemUserID, &userID)
	if err != nil && err != database.ErrNotFound {
		return ctx, errors.Wrap(err, "finding user id")
	}

	cf, err := config.Read(ctx)
	if err != nil {
		return ctx, errors.Wrap(err, "reading config")
	}

	apiEndpoint := cf.APIEndpoint
	if v := os.Getenv("LYB_API_ENDPOINT"); v != "" {
		apiEndpoint = v
	}

	ret := context.LybCtx{
		Paths:            ctx.Paths,
		Version:          ctx.Version,
		DB:               ctx.DB,
		SessionKey:       sessionKey,
		SessionKeyExpiry: sessionKeyExpiry,
		UserID:           userID,
		APIEndpoint:      apiEndpoint,
		Clock:            clock.New(),
		HTTPClient:       client.NewRateLimitedHTTPClient(),
	}

	return ret, nil
}

// loadEnvFile loads the optional env file from the config dir. Missing files
// are fine; values already present in the environment win.
func loadEnvFile(ctx context.LybCtx) {
	path := filepath.Join(ctx.Paths.Config, consts.LybDirName, consts.EnvFilename)

	ok, err := utils.FileExists(path)
	if err != nil {
		log.Error(errors.Wrapf(err, "checking env file at %s", path).Error())
		return
	}
	if !ok {
		return
	}

	if err := godotenv.Load(path); err != nil {
		log.Error(errors.Wrapf(err, "loading env file at %s", path).Error())
	}
}

func initSystemKV(db *database.DB, key string, val string) error {
	var existing string
	err := database.GetSystem(db, key, &existing)
	if err == nil {
		return nil
	}
	if err != database.ErrNotFound {
		return errors.Wrapf(err, "finding %s", key)
	}

	if err := database.UpdateSystem(db, key, val); err != nil {
		return errors.Wrapf(err, "inserting %s %s", key, val)
	}

	return nil
}

// InitSystem inserts system data if missing
func InitSystem(ctx context.LybCtx) error {
	log.Debug("initializing the system\n")

	db := ctx.DB

	if err := initSystemKV(db, consts.SystemSchema, "1"); err != nil {
		return errors.Wrapf(err, "initializing system config for %s", consts.SystemSchema)
	}
	if err := initSystemKV(db, consts.SystemLastSyncAt, "0"); err != nil {
		return errors.Wrapf(err, "initializing system config for %s", consts.SystemLastSyncAt)
	}

	return nil
}

// initConfigFile populates a new config file if it does not exist yet
func initConfigFile(ctx context.LybCtx, apiEndpoint string) error {
	path := config.GetPath(ctx)
	ok, err := utils.FileExists(path)
	if err != nil {
		return errors.Wrap(err, "checking if config exists")
	}
	if ok {
		return nil
	}

	endpoint := apiEndpoint
	if endpoint == "" {
		endpoint = DefaultAPIEndpoint
	}

	cf := config.Config{
		APIEndpoint:         endpoint,
		ConflictStrategy:    "last-write-wins",
		SyncIntervalMinutes: 5,
	}

	if err := config.Write(ctx, cf); err != nil {
		return errors.Wrap(err, "writing config")
	}

	return nil
}

// initFiles creates, if necessary, the logyourbody directory and files inside
func initFiles(ctx context.LybCtx, apiEndpoint string) error {
	if err := initConfigFile(ctx, apiEndpoint); err != nil {
		return errors.Wrap(err, "generating the config file")
	}

	return nil
}
