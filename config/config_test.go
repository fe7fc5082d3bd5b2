package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
version: 1.0

output:
  overwrite: false
  directory: ./test_channels

market_map:
  custom_channel: "Config Market Name"
  google_play: "Config Google Play"

channels:
  - name: custom_channel
    metadata:
      CHANNEL_ID: custom_channel
      MARKET_NAME: Metadata Market Name
  - name: google_play
    metadata:
      CHANNEL_ID: gp
      MARKET_NAME: Metadata Google Play
      BUILD: "42"
  - name: huawei
    metadata:
      CHANNEL_ID: huawei
  - name: xiaomi
  - name: new_channel
`

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0644))
	config, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, config.Path())
	assert.Equal(t, "1.0", config.Version)
	assert.Equal(t, "./test_channels", config.Output.Directory)
	assert.Equal(t, DefaultPattern, config.Output.Pattern)
	assert.False(t, config.ShouldOverwrite())
	require.Len(t, config.Channels, 5)

	xiaomi, err := config.ChannelByName("xiaomi")
	require.NoError(t, err)
	assert.NotNil(t, xiaomi.Metadata)
	assert.Equal(t, "xiaomi", xiaomi.ID())
	gp, err := config.ChannelByName("google_play")
	require.NoError(t, err)
	assert.Equal(t, "gp", gp.ID())
	assert.Equal(t, map[string]string{"BUILD": "42"}, gp.Extra())
	_, err = config.ChannelByName("nope")
	assert.Error(t, err)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMarketName(t *testing.T) {
	config, err := Parse([]byte(testConfig))
	require.NoError(t, err)
	cases := []struct {
		Channel, Expected string
	}{
		// metadata wins over everything
		{"custom_channel", "Metadata Market Name"},
		{"google_play", "Metadata Google Play"},
		// built-in table
		{"huawei", "Huawei AppGallery"},
		{"xiaomi", "Xiaomi MIUI Store"},
		// capitalized name
		{"new_channel", "New_channel"},
		{"UNLISTED", "Unlisted"},
		{"yingyongbao", "应用宝"},
	}
	for _, c := range cases {
		assert.Equal(t, c.Expected, config.MarketName(c.Channel), c.Channel)
	}
	config.MarketMap["huawei"] = "Mapped Huawei"
	assert.Equal(t, "Mapped Huawei", config.MarketName("huawei"))
}

func TestDefaults(t *testing.T) {
	config, err := Parse([]byte("channels:\n  - name: vivo\n"))
	require.NoError(t, err)
	assert.Equal(t, "1.0", config.Version)
	assert.Equal(t, "./channels", config.Output.Directory)
	assert.True(t, config.ShouldOverwrite())
	ch := config.Channels[0]
	assert.Equal(t, filepath.Join("/build", "channels", "app-release_vivo.apk"), config.OutputPath("/build/app-release.apk", ch))
	config.Output.Directory = "/out"
	assert.Equal(t, filepath.Join("/out", "app-release_vivo.apk"), config.OutputPath("/build/app-release.apk", ch))
	config.Output.Directory = "./channels"

	config.Output.Pattern = "{name}-{channel}-{base}{ext}"
	ch.Metadata[MetaChannelID] = "v01"
	assert.Equal(t, filepath.Join("channels", "vivo-v01-app.apk"), config.OutputPath("app.apk", ch))
}

func TestValidation(t *testing.T) {
	cases := []struct {
		Case, Doc string
	}{
		{"NoChannels", "version: 1.0\n"},
		{"EmptyChannels", "channels: []\n"},
		{"MissingName", "channels:\n  - metadata:\n      CHANNEL_ID: x\n"},
		{"Duplicate", "channels:\n  - name: a\n  - name: b\n  - name: a\n"},
		{"Slash", "channels:\n  - name: a/b\n"},
		{"DotDot", "channels:\n  - name: ok\n    metadata:\n      CHANNEL_ID: ..\n"},
		{"Control", "channels:\n  - name: \"a\\tb\"\n"},
		{"Pattern", "output:\n  pattern: \"{base}{ext}\"\nchannels:\n  - name: a\n"},
		{"Syntax", "channels: [\n"},
	}
	for _, c := range cases {
		t.Run(c.Case, func(t *testing.T) {
			_, err := Parse([]byte(c.Doc))
			assert.Error(t, err)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("config directory layout differs")
	}
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/builder")
	assert.Equal(t, "/home/builder/.config/apkchannel/channels.yaml", DefaultConfig())
	t.Setenv("HOME", "")
	assert.Equal(t, "", DefaultConfig())
}
