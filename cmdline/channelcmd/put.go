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
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sassoftware/apkchannel/cmdline/shared"
	"github.com/sassoftware/apkchannel/config"
	"github.com/sassoftware/apkchannel/lib/channel"
	"github.com/sassoftware/apkchannel/lib/channelinfo"
)

var PutCmd = &cobra.Command{
	Use:   "put -c CHANNEL SRC [DEST]",
	Short: "Write a channel into a signed APK",
	Long: `Write a channel into the signing block of a signed APK.

The result is written to DEST, which defaults to <base>_<channel><ext> next to
SRC. With --in-place SRC itself is rewritten. The APK signature stays valid.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: putCmd,
}

var (
	argChannel  string
	argExtra    []string
	argRawFile  string
	argInPlace  bool
	argNoAtomic bool
)

func addWriteFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&argNoAtomic, "no-atomic", false, "Rewrite outputs directly instead of through a temporary file")
}

func init() {
	shared.RootCmd.AddCommand(PutCmd)
	PutCmd.Flags().StringVarP(&argChannel, "channel", "c", "", "Channel name")
	PutCmd.Flags().StringArrayVarP(&argExtra, "extra", "e", nil, "Extra key=value stored with the channel (repeatable)")
	PutCmd.Flags().StringVar(&argRawFile, "raw-file", "", "Store the contents of this file verbatim instead of a channel payload")
	PutCmd.Flags().BoolVar(&argInPlace, "in-place", false, "Rewrite SRC instead of writing a new file")
	addWriteFlags(PutCmd.Flags())
}

func putCmd(cmd *cobra.Command, args []string) error {
	value, name, err := putValue()
	if err != nil {
		return err
	}
	src := args[0]
	var dest string
	switch {
	case argInPlace && len(args) > 1:
		return errors.New("--in-place does not take a destination")
	case argInPlace:
		dest = src
	case len(args) > 1:
		dest = args[1]
	case name == "" || strings.ContainsAny(name, `/\`):
		return errors.New("no usable channel name in --raw-file, a destination is required")
	default:
		dest = filepath.Join(filepath.Dir(src), config.FormatName(config.DefaultPattern, src, name, name))
	}
	ctx := log.Logger.WithContext(cmd.Context())
	res, err := put(ctx, src, dest, value)
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	log.Info().
		Str("dest", res.Path).
		Int64("old_block_size", res.OldBlockSize).
		Int64("new_block_size", res.NewBlockSize).
		Bool("replaced", res.Replaced).
		Msg("channel written")
	fmt.Println(res.Path)
	return nil
}

// putValue builds the value to store and a name to use for the output file
func putValue() ([]byte, string, error) {
	if argRawFile != "" {
		if argChannel != "" || len(argExtra) != 0 {
			return nil, "", errors.New("--raw-file can't be combined with --channel or --extra")
		}
		value, err := os.ReadFile(argRawFile)
		if err != nil {
			return nil, "", err
		}
		return value, channelinfo.Parse(value).Channel, nil
	}
	if argChannel == "" {
		return nil, "", errors.New("--channel is required")
	}
	extra, err := channelinfo.ParseExtra(argExtra)
	if err != nil {
		return nil, "", err
	}
	value, err := (&channelinfo.Info{Channel: argChannel, Extra: extra}).Marshal()
	if err != nil {
		return nil, "", err
	}
	return value, argChannel, nil
}

func put(ctx context.Context, src, dest string, value []byte) (*channel.Result, error) {
	unlock, err := channel.LockDest(dest)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if argNoAtomic {
		return channel.Inject(ctx, src, dest, value)
	}
	return channel.InjectAtomic(ctx, src, dest, value)
}
