package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gera2ld/goftpd"
	"github.com/gera2ld/goftpd/objectstore"
)

// ErrUnknownUser is returned by AuthUser/LookupUser for a name not present
// in the configured user table.
var ErrUnknownUser = errors.New("unknown user")

// ErrBadPassword is returned by AuthUser when the password doesn't match.
var ErrBadPassword = errors.New("bad password")

// Driver is the concrete ftpd.MainDriver built from a loaded Config,
// grounded on the teacher's drivers.FilesDriver (same responsibilities:
// settings, auth, welcome banner) but backed by the rule-based User table
// instead of a per-user rebased filesystem.
type Driver struct {
	settings *ftpd.Settings
	store    ftpd.ObjectStore

	mu    sync.RWMutex
	users map[string]*ftpd.User
}

// NewDriver builds a Driver from a loaded Config.
func NewDriver(cfg *Config) (*Driver, error) {
	var store ftpd.ObjectStore

	switch strings.ToLower(cfg.Store.Kind) {
	case "", "os":
		store = objectstore.NewOSStore(cfg.Store.Dir)
	case "memory":
		store = objectstore.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}

	d := &Driver{
		settings: cfg.ToSettings(),
		store:    store,
		users:    make(map[string]*ftpd.User),
	}

	for _, u := range cfg.ToUsers() {
		d.users[u.Name] = u
	}

	return d, nil
}

// GetSettings implements ftpd.MainDriver.
func (d *Driver) GetSettings() (*ftpd.Settings, error) {
	return d.settings, nil
}

// GetObjectStore implements ftpd.MainDriver.
func (d *Driver) GetObjectStore() (ftpd.ObjectStore, error) {
	return d.store, nil
}

// ClientConnected implements ftpd.MainDriver.
func (d *Driver) ClientConnected(cc ftpd.ClientContext) (string, error) {
	return d.settings.Banner, nil
}

// ClientDisconnected implements ftpd.MainDriver.
func (d *Driver) ClientDisconnected(cc ftpd.ClientContext) {}

// LookupUser implements ftpd.MainDriver.
func (d *Driver) LookupUser(name string) (*ftpd.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownUser)
	}

	return user, nil
}

// AuthUser implements ftpd.MainDriver.
func (d *Driver) AuthUser(cc ftpd.ClientContext, name, pass string) (*ftpd.User, error) {
	user, err := d.LookupUser(name)
	if err != nil {
		return nil, err
	}

	if !user.Authenticate(pass) {
		return nil, fmt.Errorf("%q: %w", name, ErrBadPassword)
	}

	return user, nil
}
