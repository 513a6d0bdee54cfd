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

// Package consts provides definitions of constants
package consts

var (
	// LybDirName is the name of the directory containing logyourbody files
	LybDirName = "logyourbody"
	// LybDBFileName is a filename for the LogYourBody SQLite database
	LybDBFileName = "logyourbody.db"
	// ConfigFilename is the name of the config file
	ConfigFilename = "logyourbodyrc"
	// EnvFilename is the name of the optional dotenv file loaded during init
	EnvFilename = ".env"

	// SystemSchema is the key for schema version in the system table
	SystemSchema = "schema"
	// SystemLastSyncAt is the timestamp of the last successful sync pass
	SystemLastSyncAt = "last_sync_time"
	// SystemSessionKey is the session key
	SystemSessionKey = "session_token"
	// SystemSessionKeyExpiry is the timestamp at which the session key will expire
	SystemSessionKeyExpiry = "session_token_expiry"
	// SystemUserID is the identifier of the authenticated user, cached locally
	// so that offline writes never need the network
	SystemUserID = "user_id"
)
