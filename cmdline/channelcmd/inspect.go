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
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/kr/pretty"
	"github.com/spf13/cobra"

	"github.com/sassoftware/apkchannel/cmdline/shared"
	"github.com/sassoftware/apkchannel/lib/channel"
)

var InspectCmd = &cobra.Command{
	Use:   "inspect APK...",
	Short: "Show where the signing block and central directory of an APK are",
	Args:  cobra.MinimumNArgs(1),
	RunE:  inspectCmd,
}

var (
	argJSON  bool
	argDebug bool
)

func init() {
	shared.RootCmd.AddCommand(InspectCmd)
	InspectCmd.Flags().BoolVar(&argJSON, "json", false, "Print the layout as JSON")
	InspectCmd.Flags().BoolVar(&argDebug, "debug", false, "Dump the decoded layout structure")
}

func inspectCmd(cmd *cobra.Command, args []string) error {
	failed := false
	var layouts []*channel.Layout
	for _, path := range args {
		layout, err := channel.Inspect(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s ERROR: %s\n", path, err)
			failed = true
			continue
		}
		switch {
		case argJSON:
			layouts = append(layouts, layout)
		case argDebug:
			pretty.Println(layout)
		default:
			printLayout(layout)
		}
	}
	if argJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(layouts); err != nil {
			return err
		}
	}
	if failed {
		return errors.New("1 or more files could not be inspected")
	}
	return nil
}

func printLayout(l *channel.Layout) {
	fmt.Printf("%s: %s, %d bytes\n", l.Path, l.Type, l.Size)
	fmt.Printf("  signing block:     %d+%d\n", l.BlockOffset, l.BlockSize)
	fmt.Printf("  central directory: %d+%d, %d entries\n", l.DirOffset, l.DirSize, l.Entries)
	fmt.Printf("  end record:        %d, comment %d bytes\n", l.EndOffset, l.CommentLen)
	for _, p := range l.Pairs {
		fmt.Printf("  pair 0x%08x %-16s %d bytes\n", p.ID, p.Name, p.Length)
	}
	if l.Channel != "" {
		fmt.Printf("  channel: %s\n", l.Channel)
	}
}
