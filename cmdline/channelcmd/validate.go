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
	"archive/zip"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sassoftware/apkchannel/cmdline/shared"
	"github.com/sassoftware/apkchannel/lib/channel"
	"github.com/sassoftware/apkchannel/lib/sigblock"
	"github.com/sassoftware/apkchannel/lib/sigerrors"
)

var ValidateCmd = &cobra.Command{
	Use:   "validate APK...",
	Short: "Check that channel APKs are intact",
	Long: `Check that each APK still opens as a ZIP archive with readable entries,
carries a v2 signature in its signing block, and has a channel.`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCmd,
}

func init() {
	shared.RootCmd.AddCommand(ValidateCmd)
}

func validateCmd(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		name, err := validateOne(path)
		if err != nil {
			fmt.Printf("%s ERROR: %s\n", path, err)
			failed++
			continue
		}
		fmt.Printf("%s: OK channel=%s\n", path, name)
	}
	if failed != 0 {
		return fmt.Errorf("%d of %d files did not validate", failed, len(args))
	}
	return nil
}

// validateOne returns the channel name of a valid APK
func validateOne(path string) (string, error) {
	if err := checkZip(path); err != nil {
		return "", err
	}
	layout, err := channel.Inspect(path)
	if err != nil {
		return "", err
	}
	hasV2 := false
	for _, p := range layout.Pairs {
		if p.ID == sigblock.SchemeV2ID {
			hasV2 = true
		}
	}
	if !hasV2 {
		return "", sigerrors.ErrSignatureEntryMissing
	}
	info, err := channel.ReadInfo(path)
	if err != nil {
		return "", err
	} else if info == nil {
		return "", errors.New("no channel")
	}
	return info.Channel, nil
}

func checkZip(path string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer zr.Close()
	for _, f := range zr.File {
		if err := checkEntry(f); err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	return nil
}

func checkEntry(f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	// the zip reader verifies the CRC at EOF
	_, err = io.Copy(io.Discard, rc)
	return err
}
