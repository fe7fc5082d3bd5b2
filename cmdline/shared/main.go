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
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sassoftware/apkchannel/config"
	"github.com/sassoftware/apkchannel/internal/logging"
)

var (
	ArgConfig     string
	ArgLogLevel   string
	ArgLogFile    string
	CurrentConfig *config.Config
	argVersion    bool
)

var RootCmd = &cobra.Command{
	Use:               "apkchannel",
	Short:             "Embed distribution channel markers in signed APKs",
	PersistentPreRunE: setup,
	RunE:              bailUnlessVersion,
	SilenceUsage:      true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&ArgConfig, "config", "", "Channel configuration file")
	RootCmd.PersistentFlags().StringVar(&ArgLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().StringVar(&ArgLogFile, "log-file", "", "Append JSON logs to this file, or - for JSON on stderr")
	RootCmd.PersistentFlags().BoolVar(&argVersion, "version", false, "Show version and exit")
}

func setup(cmd *cobra.Command, args []string) error {
	if argVersion {
		fmt.Printf("apkchannel version %s\n", config.Version)
		os.Exit(0)
	}
	return logging.Setup(ArgLogLevel, ArgLogFile)
}

func bailUnlessVersion(cmd *cobra.Command, args []string) error {
	if !argVersion {
		return errors.New("expected a command")
	}
	return nil
}

// Main runs the command selected by the command line. Cancelling ctx
// interrupts long running commands.
func Main(ctx context.Context) {
	if err := RootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
