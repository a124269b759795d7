package ftpd

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
)

const (
	authUser = "test"
	authPass = "test"
)

var (
	ErrUnknownUser = errors.New("unknown user")
	ErrBadPassword = errors.New("bad password")
)

// testDriver is a minimal ftpd.MainDriver, grounded on the teacher's
// TestServerDriver/TestClientDriver pair but adapted to this fork's single
// shared ObjectStore + User-table shape: one in-memory filesystem, one
// account, no rebasing per user.
type testDriver struct {
	settings *Settings
	store    ObjectStore
	user     *User
}

func newTestDriver(t *testing.T) *testDriver {
	t.Helper()

	store := afero.NewMemMapFs()

	user := NewUser(authUser, authPass, "/", Attrs{Permission: "elrwadfm"})

	return &testDriver{
		settings: &Settings{ListenAddr: "127.0.0.1:0"},
		store:    store,
		user:     user,
	}
}

func (d *testDriver) GetSettings() (*Settings, error) { return d.settings, nil }

func (d *testDriver) GetObjectStore() (ObjectStore, error) { return d.store, nil }

func (d *testDriver) ClientConnected(ClientContext) (string, error) { return "TEST Server", nil }

func (d *testDriver) ClientDisconnected(ClientContext) {}

func (d *testDriver) LookupUser(name string) (*User, error) {
	if name == d.user.Name {
		return d.user, nil
	}

	return nil, ErrUnknownUser
}

func (d *testDriver) AuthUser(cc ClientContext, name, pass string) (*User, error) {
	user, err := d.LookupUser(name)
	if err != nil {
		return nil, err
	}

	if !user.Authenticate(pass) {
		return nil, ErrBadPassword
	}

	return user, nil
}

// newTestServer starts a Server listening on an ephemeral loopback port and
// stops it automatically at test cleanup, mirroring the teacher's
// NewTestServer.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	driver := newTestDriver(t)
	server := NewServer(driver)

	t.Cleanup(func() {
		_ = server.Stop()
	})

	if err := server.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}

	go func() {
		_ = server.Serve()
	}()

	return server
}
