/*
 * Copyright (c) SAS Institute Inc.
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

package shared

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/sassoftware/apkchannel/config"
)

// InitConfig loads the channel configuration into CurrentConfig. Without
// --config the per-user file is used if it exists.
func InitConfig() error {
	if CurrentConfig != nil {
		return nil
	}
	path := ArgConfig
	if path == "" {
		path = config.DefaultConfig()
		if _, err := os.Stat(path); path == "" || errors.Is(err, os.ErrNotExist) {
			return errors.New("--config not specified and no default channel configuration found")
		}
	}
	cfg, err := config.ReadFile(path)
	if err != nil {
		return err
	}
	log.Debug().Str("path", path).Int("channels", len(cfg.Channels)).Msg("loaded channel configuration")
	CurrentConfig = cfg
	return nil
}

// Fail prints a fatal setup error and exits with EX_SOFTWARE
func Fail(err error) error {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(70)
	}
	return err
}
