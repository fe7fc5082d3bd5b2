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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

const (
	defaultVersion   = "1.0"
	defaultDirectory = "./channels"
	// DefaultPattern names outputs after the source and the channel ID
	DefaultPattern = "{base}_{channel}{ext}"

	// MetaChannelID overrides the value written into the archive
	MetaChannelID = "CHANNEL_ID"
	// MetaMarketName overrides the display name of the channel's store
	MetaMarketName = "MARKET_NAME"
)

var defaultMarkets = map[string]string{
	"google_play": "Google Play",
	"huawei":      "Huawei AppGallery",
	"xiaomi":      "Xiaomi MIUI Store",
	"oppo":        "OPPO App Market",
	"vivo":        "vivo App Store",
	"meizu":       "Meizu Flyme Store",
	"samsung":     "Samsung Galaxy Store",
	"lenovo":      "Lenovo App Store",
	"360":         "360 Mobile Assistant",
	"baidu":       "Baidu Mobile Assistant",
	"tencent":     "Tencent MyApp",
	"yingyongbao": "应用宝",
}

type OutputConfig struct {
	Directory string // Where generated archives are written (default ./channels)
	Overwrite *bool  // Replace existing outputs (default true)
	Pattern   string // Output file name, see OutputPath
}

type ChannelConfig struct {
	Name     string            // Channel name (required, unique)
	Metadata map[string]string // Extra values stored alongside the channel
}

type Config struct {
	Version   string
	Output    *OutputConfig
	MarketMap map[string]string `yaml:"market_map"`
	Channels  []*ChannelConfig

	path string
}

func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	config.path = path
	return config, nil
}

// Parse decodes and validates a channel configuration document
func Parse(data []byte) (*Config, error) {
	config := new(Config)
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}
	if err := config.Normalize(); err != nil {
		return nil, err
	}
	return config, nil
}

// Path returns the file the configuration was read from, if any
func (config *Config) Path() string {
	return config.path
}

// Normalize fills in defaults and checks the channel list
func (config *Config) Normalize() error {
	if config.Version == "" {
		config.Version = defaultVersion
	}
	if config.Output == nil {
		config.Output = new(OutputConfig)
	}
	if config.Output.Directory == "" {
		config.Output.Directory = defaultDirectory
	}
	if config.Output.Overwrite == nil {
		overwrite := true
		config.Output.Overwrite = &overwrite
	}
	if config.Output.Pattern == "" {
		config.Output.Pattern = DefaultPattern
	} else if !strings.Contains(config.Output.Pattern, "{channel}") && !strings.Contains(config.Output.Pattern, "{name}") {
		return fmt.Errorf("output pattern %q must contain {channel} or {name}", config.Output.Pattern)
	}
	if len(config.Channels) == 0 {
		return errors.New("no channels defined in configuration")
	}
	seen := make(map[string]bool, len(config.Channels))
	for i, ch := range config.Channels {
		if ch == nil || ch.Name == "" {
			return fmt.Errorf("channel %d does not specify required value 'name'", i+1)
		}
		if seen[ch.Name] {
			return fmt.Errorf("channel \"%s\" is defined more than once", ch.Name)
		}
		seen[ch.Name] = true
		if ch.Metadata == nil {
			ch.Metadata = make(map[string]string)
		}
		if err := checkFileName(ch.ID()); err != nil {
			return fmt.Errorf("channel \"%s\": %w", ch.Name, err)
		}
		if err := checkFileName(ch.Name); err != nil {
			return fmt.Errorf("channel \"%s\": %w", ch.Name, err)
		}
	}
	return nil
}

func checkFileName(name string) error {
	if name == "." || name == ".." || strings.ContainsAny(name, `/\:*?"<>|`) {
		return fmt.Errorf("%q can't be used in a file name", name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%q can't be used in a file name", name)
		}
	}
	return nil
}

// ShouldOverwrite returns true if existing outputs may be replaced
func (config *Config) ShouldOverwrite() bool {
	return config.Output == nil || config.Output.Overwrite == nil || *config.Output.Overwrite
}

func (config *Config) ChannelByName(name string) (*ChannelConfig, error) {
	for _, ch := range config.Channels {
		if ch.Name == name {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("channel \"%s\" not found in configuration", name)
}

// MarketName returns the store name for a channel. The channel's own
// MARKET_NAME wins, then market_map, then a built-in table of well-known
// stores, and finally the channel name with its first letter capitalized.
func (config *Config) MarketName(name string) string {
	if ch, err := config.ChannelByName(name); err == nil {
		if market := ch.Metadata[MetaMarketName]; market != "" {
			return market
		}
	}
	if market := config.MarketMap[name]; market != "" {
		return market
	}
	if market := defaultMarkets[name]; market != "" {
		return market
	}
	return capitalize(name)
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[n:])
}

// OutputPath returns where the variant of src for a channel is written. A
// relative output directory is taken relative to the directory holding src.
// The pattern may use {base} and {ext} from the source file name, {channel}
// for the channel ID and {name} for the channel name.
func (config *Config) OutputPath(src string, ch *ChannelConfig) string {
	pattern := DefaultPattern
	dir := defaultDirectory
	if config.Output != nil {
		if config.Output.Pattern != "" {
			pattern = config.Output.Pattern
		}
		if config.Output.Directory != "" {
			dir = config.Output.Directory
		}
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(filepath.Dir(src), dir)
	}
	return filepath.Join(dir, FormatName(pattern, src, ch.ID(), ch.Name))
}

// FormatName expands an output file name pattern
func FormatName(pattern, src, channelID, name string) string {
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	base = strings.TrimSuffix(base, ext)
	return strings.NewReplacer(
		"{base}", base,
		"{ext}", ext,
		"{channel}", channelID,
		"{name}", name,
	).Replace(pattern)
}

// ID returns the value written into the archive for this channel
func (ch *ChannelConfig) ID() string {
	if id := ch.Metadata[MetaChannelID]; id != "" {
		return id
	}
	return ch.Name
}

// Extra returns the metadata stored in the channel payload next to the ID.
// CHANNEL_ID and MARKET_NAME only steer this tool and are left out.
func (ch *ChannelConfig) Extra() map[string]string {
	extra := make(map[string]string, len(ch.Metadata))
	for k, v := range ch.Metadata {
		if k == MetaChannelID || k == MetaMarketName || k == "channel" {
			continue
		}
		extra[k] = v
	}
	return extra
}
