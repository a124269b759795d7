package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content []byte) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "goftpd.toml")

	require.NoError(t, os.WriteFile(path, content, 0o644))

	return path
}

func TestLoadSampleContentRoundTrip(t *testing.T) {
	path := writeTempConfig(t, SampleContent())

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:2121", cfg.Server.ListenAddr)
	require.Equal(t, 8030, cfg.Server.PassiveTransferPortStart)
	require.Equal(t, 8040, cfg.Server.PassiveTransferPortEnd)
	require.Equal(t, "os", cfg.Store.Kind)
	require.False(t, cfg.Metrics.Enabled)
	require.Len(t, cfg.Users, 2)
	require.Equal(t, "test", cfg.Users[0].Name)
	require.Equal(t, "anonymous", cfg.Users[1].Name)
}

func TestLoadAppliesDefaultsToMinimalConfig(t *testing.T) {
	path := writeTempConfig(t, []byte(`[server]
listen_addr = "127.0.0.1:2200"
`))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:2200", cfg.Server.ListenAddr)
	require.Equal(t, 4096, cfg.Server.BufferSize)
	require.Equal(t, "./data", cfg.Store.Dir)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestToSettingsMapsPassivePortRange(t *testing.T) {
	cfg := &Config{Server: ServerConfig{
		ListenAddr:               "127.0.0.1:2121",
		PassiveTransferPortStart: 9000,
		PassiveTransferPortEnd:   9010,
	}}

	settings := cfg.ToSettings()

	require.Equal(t, "127.0.0.1:2121", settings.ListenAddr)
	require.NotNil(t, settings.PassiveTransferPortRange)
	require.Equal(t, 9000, settings.PassiveTransferPortRange.Start)
	require.Equal(t, 9010, settings.PassiveTransferPortRange.End)
}

func TestToSettingsLeavesPassiveRangeNilWhenUnset(t *testing.T) {
	cfg := &Config{Server: ServerConfig{ListenAddr: "127.0.0.1:2121"}}

	settings := cfg.ToSettings()
	require.Nil(t, settings.PassiveTransferPortRange)
}

func TestToUsersBuildsRules(t *testing.T) {
	cfg := &Config{Users: []UserConfig{
		{
			Name:       "bob",
			Password:   "secret",
			HomeDir:    "/home/bob",
			Permission: "elr",
			Rules: []RuleConfig{
				{Src: "/pub", Dest: "/srv/pub", Permission: "elrw", MaxUp: 2048},
			},
		},
	}}

	users := cfg.ToUsers()
	require.Len(t, users, 1)
	require.Equal(t, "bob", users[0].Name)
	require.True(t, users[0].Authenticate("secret"))
	require.False(t, users[0].Authenticate("wrong"))

	require.Len(t, users[0].Rules, 2)
	require.Equal(t, "/pub/", users[0].Rules[1].Src)
	require.Equal(t, "/srv/pub/", users[0].Rules[1].Dest)
	require.Equal(t, "elrw", users[0].Rules[1].Attrs.Permission)
	require.EqualValues(t, 2048, users[0].Rules[1].Attrs.MaxUp)
}
