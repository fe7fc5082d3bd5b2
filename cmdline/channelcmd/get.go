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

package channelcmd

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sassoftware/apkchannel/cmdline/shared"
	"github.com/sassoftware/apkchannel/lib/atomicfile"
	"github.com/sassoftware/apkchannel/lib/channel"
	"github.com/sassoftware/apkchannel/lib/channelinfo"
)

var GetCmd = &cobra.Command{
	Use:   "get APK...",
	Short: "Show the channel stored in one or more APKs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  getCmd,
}

var (
	argRaw     bool
	argExtract string
)

func init() {
	shared.RootCmd.AddCommand(GetCmd)
	GetCmd.Flags().BoolVar(&argRaw, "raw", false, "Print the stored value as is")
	GetCmd.Flags().StringVar(&argExtract, "extract", "", "Write the stored value of a single APK to this file (- for stdout)")
}

func getCmd(cmd *cobra.Command, args []string) error {
	if argExtract != "" {
		if len(args) != 1 {
			return errors.New("--extract takes exactly one APK")
		}
		return extract(args[0], argExtract)
	}
	failed := false
	for _, path := range args {
		line, err := getOne(path)
		if err != nil {
			fmt.Printf("%s ERROR: %s\n", path, err)
			failed = true
			continue
		}
		fmt.Printf("%s: %s\n", path, line)
	}
	if failed {
		return errors.New("1 or more files could not be read")
	}
	return nil
}

func getOne(path string) (string, error) {
	value, found, err := channel.Read(path)
	if err != nil {
		return "", err
	} else if !found {
		return "no channel", nil
	}
	if argRaw {
		return string(value), nil
	}
	return formatInfo(channelinfo.Parse(value)), nil
}

func formatInfo(info *channelinfo.Info) string {
	if len(info.Extra) == 0 {
		return info.Channel
	}
	keys := make([]string, 0, len(info.Extra))
	for k := range info.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(info.Channel)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, info.Extra[k])
	}
	return b.String()
}

func extract(path, out string) error {
	value, found, err := channel.Read(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	} else if !found {
		return fmt.Errorf("%s: no channel", path)
	}
	f, err := atomicfile.WriteAny(out)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(value); err != nil {
		return err
	}
	if out == "-" {
		fmt.Fprintln(os.Stdout)
	}
	return f.Commit()
}
