// Package config loads the goftpd daemon's configuration file, in the style
// of the teacher's sample.NewSampleDriver (TOML via a settings file) but
// rebuilt on spf13/viper so it also accepts YAML/JSON and environment
// variable overrides, matching marmos91-dittofs' config-loading idiom.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/gera2ld/goftpd"
)

// RuleConfig is one DirRule entry in the config file.
type RuleConfig struct {
	Src        string `mapstructure:"src"`
	Dest       string `mapstructure:"dest"`
	Permission string `mapstructure:"permission"`
	MaxDown    int64  `mapstructure:"max_down"`
	MaxUp      int64  `mapstructure:"max_up"`
}

// UserConfig is one [[users]] entry.
type UserConfig struct {
	Name           string       `mapstructure:"name"`
	Password       string       `mapstructure:"password"`
	LoginMessage   string       `mapstructure:"login_message"`
	HomeDir        string       `mapstructure:"home_dir"`
	MaxConnections int          `mapstructure:"max_connections"`
	Permission     string       `mapstructure:"permission"`
	Rules          []RuleConfig `mapstructure:"rules"`
}

// ServerConfig mirrors ftpd.Settings, minus the fields only code can set
// (Listener, PublicIPResolver).
type ServerConfig struct {
	ListenAddr               string `mapstructure:"listen_addr"`
	PublicHost               string `mapstructure:"public_host"`
	PassiveTransferPortStart int    `mapstructure:"passive_port_start"`
	PassiveTransferPortEnd   int    `mapstructure:"passive_port_end"`
	DisableActiveMode        bool   `mapstructure:"disable_active_mode"`
	ActiveTransferPortNon20  bool   `mapstructure:"active_transfer_port_non20"`
	ControlTimeoutSeconds    int    `mapstructure:"control_timeout_seconds"`
	DataTimeoutSeconds       int    `mapstructure:"data_timeout_seconds"`
	ConnectTimeoutSeconds    int    `mapstructure:"connect_timeout_seconds"`
	BufferSize               int    `mapstructure:"buffer_size"`
	MaxConnections           int    `mapstructure:"max_connections"`
	MaxConnectionsPerUser    int    `mapstructure:"max_connections_per_user"`
	Banner                   string `mapstructure:"banner"`
	DisableLISTArgs          bool   `mapstructure:"disable_list_args"`
	DefaultEncoding          string `mapstructure:"default_encoding"`
}

// StoreConfig selects and configures the ObjectStore backend.
type StoreConfig struct {
	// Kind is "os" (rooted at Dir, the default) or "memory" (for quick trials).
	Kind string `mapstructure:"kind"`
	Dir  string `mapstructure:"dir"`
}

// MetricsConfig controls the optional Prometheus /metrics endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// Config is the root of the goftpd configuration file.
type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	Store   StoreConfig    `mapstructure:"store"`
	Metrics MetricsConfig  `mapstructure:"metrics"`
	Users   []UserConfig   `mapstructure:"users"`
}

// Load reads path (any format viper supports: toml, yaml, json) and applies
// the same defaults loadSettings would apply server-side (except the listen
// address, which defaults to 0.0.0.0:2121 here), so a mostly-empty
// file is already a usable quickstart config, per the teacher's main.go
// "just run it" philosophy.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("GOFTPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", "0.0.0.0:2121")
	v.SetDefault("server.passive_port_start", 8030)
	v.SetDefault("server.passive_port_end", 8040)
	v.SetDefault("server.control_timeout_seconds", 120)
	v.SetDefault("server.data_timeout_seconds", 10)
	v.SetDefault("server.connect_timeout_seconds", 5)
	v.SetDefault("server.buffer_size", 4096)
	v.SetDefault("server.banner", "goftpd - a lightweight FTP server")
	v.SetDefault("server.default_encoding", "utf-8")
	v.SetDefault("store.kind", "os")
	v.SetDefault("store.dir", "./data")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", "127.0.0.1:9090")
}

// ToSettings builds a ftpd.Settings from the loaded ServerConfig.
func (c *Config) ToSettings() *ftpd.Settings {
	s := &ftpd.Settings{
		ListenAddr:              c.Server.ListenAddr,
		PublicHost:              c.Server.PublicHost,
		ActiveTransferPortNon20: c.Server.ActiveTransferPortNon20,
		ControlTimeoutSeconds:   c.Server.ControlTimeoutSeconds,
		DataTimeoutSeconds:      c.Server.DataTimeoutSeconds,
		ConnectTimeoutSeconds:   c.Server.ConnectTimeoutSeconds,
		BufferSize:              c.Server.BufferSize,
		MaxConnections:          c.Server.MaxConnections,
		MaxConnectionsPerUser:   c.Server.MaxConnectionsPerUser,
		Banner:                  c.Server.Banner,
		DisableLISTArgs:         c.Server.DisableLISTArgs,
		DisableActiveMode:       c.Server.DisableActiveMode,
		DefaultEncoding:         c.Server.DefaultEncoding,
	}

	if c.Server.PassiveTransferPortStart != 0 || c.Server.PassiveTransferPortEnd != 0 {
		s.PassiveTransferPortRange = &ftpd.PortRange{
			Start: c.Server.PassiveTransferPortStart,
			End:   c.Server.PassiveTransferPortEnd,
		}
	}

	return s
}

// ToUsers builds the *ftpd.User table from the loaded UserConfig list.
func (c *Config) ToUsers() []*ftpd.User {
	users := make([]*ftpd.User, 0, len(c.Users))

	for _, uc := range c.Users {
		attrs := ftpd.Attrs{Permission: uc.Permission}
		user := ftpd.NewUser(uc.Name, uc.Password, uc.HomeDir, attrs)
		user.LoginMessage = uc.LoginMessage
		user.MaxConnections = uc.MaxConnections

		for _, rc := range uc.Rules {
			user.AddRule(ftpd.NewDirRule(rc.Src, rc.Dest, ftpd.Attrs{
				Permission: rc.Permission,
				MaxDown:    rc.MaxDown,
				MaxUp:      rc.MaxUp,
			}))
		}

		users = append(users, user)
	}

	return users
}

// SampleContent returns a starter config file, mirroring the teacher's
// confFileContent helper.
func SampleContent() []byte {
	return []byte(`# goftpd configuration file

[server]
listen_addr = "0.0.0.0:2121"
# public_host = "203.0.113.10"
passive_port_start = 8030
passive_port_end = 8040
max_connections = 50
max_connections_per_user = 5
banner = "goftpd - a lightweight FTP server"

[store]
kind = "os"
dir = "./data"

[metrics]
enabled = false
listen_addr = "127.0.0.1:9090"

[[users]]
name = "test"
password = "test"
home_dir = "./data/test"
permission = "elrwadfm"

[[users]]
name = "anonymous"
password = ""
home_dir = "./data/anonymous"
permission = "elr"
`)
}
