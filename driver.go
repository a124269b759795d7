package ftpd

import (
	"net"

	"github.com/spf13/afero"
)

// MainDriver is the collaborator implemented by whoever embeds the server: it
// supplies settings, the user table (via AuthUser) and connection lifecycle
// hooks (spec.md §6 "Configuration collaborator").
type MainDriver interface {
	// GetSettings returns the already-validated Config of spec.md §6.
	GetSettings() (*Settings, error)

	// ClientConnected is called right after admission to produce the welcome
	// banner text sent with the 220 reply.
	ClientConnected(cc ClientContext) (string, error)

	// ClientDisconnected is called when a session ends, authenticated or not.
	ClientDisconnected(cc ClientContext)

	// AuthUser looks up user by name and checks pass, returning the matching
	// User record on success. An unknown user and a wrong password must both
	// return a non-nil error; PASS replies 430 in either case.
	AuthUser(cc ClientContext, user, pass string) (*User, error)

	// LookupUser returns the User record for name without checking a
	// password, used by USER to fetch the per-user login message before PASS
	// is sent.
	LookupUser(name string) (*User, error)

	// GetObjectStore returns the filesystem collaborator of spec.md §6. It's
	// fetched once at Listen time and shared by every session, since path
	// resolution (not filesystem rebasing) is what separates users now.
	GetObjectStore() (ObjectStore, error)
}

// ObjectStore is the abstract filesystem collaborator of spec.md §6: stat,
// open, listdir, mkdir, rmdir, remove, rename, walk. afero.Fs already shapes
// exactly that surface, so it's embedded directly rather than re-declared.
type ObjectStore interface {
	afero.Fs
}

// ObjectStoreExtensionRemoveDir lets an ObjectStore distinguish RMD (remove a
// directory tree) from DELE (remove a file) instead of mapping both to Remove.
type ObjectStoreExtensionRemoveDir interface {
	RemoveDir(name string) error
}

// ObjectStoreExtensionAllocate is an optional space-allocation hook. The ALLO
// handler does not call it: ALLO is approved for every ObjectStore.
type ObjectStoreExtensionAllocate interface {
	AllocateSpace(size int64) error
}

// PortRange is an inclusive-exclusive range of passive-mode ports.
type PortRange struct {
	Start int
	End   int
}

// PublicIPResolver resolves the IP advertised in a PASV reply when no static
// PublicHost is configured.
type PublicIPResolver func(ClientContext) (string, error)

// Settings is the already-validated Config of spec.md §6.
// nolint: maligned
type Settings struct {
	Listener                 net.Listener     // (optional) pre-built listener
	ListenAddr               string           // bind address, default "0.0.0.0:21"
	PublicHost               string           // static public IP for PASV replies
	PublicIPResolver         PublicIPResolver // (optional) dynamic public IP lookup
	PassiveTransferPortRange *PortRange       // default [8030, 8040)
	ActiveTransferPortNon20  bool             // skip binding active-mode dials to port 20
	ControlTimeoutSeconds    int              // control-channel idle timeout, default 120
	DataTimeoutSeconds       int              // data-channel idle timeout, default 10
	ConnectTimeoutSeconds    int              // PASV/PORT establishment timeout, default 5
	BufferSize               int              // buf_in/buf_out, default 4096
	MaxConnections           int              // global admission ceiling
	MaxConnectionsPerUser    int              // server-wide per-IP default ceiling (pre-login)
	Banner                   string           // 220 banner text
	DisableLISTArgs          bool             // disable ls-style flags (-a, -la, ...) for LIST
	DisableActiveMode        bool             // reject PORT
	DefaultEncoding          string           // default "utf-8"
	DefaultTransferType      TransferType     // TYPE to assume before the client sends one
}

func (st *Settings) defaultTransferType() TransferType {
	if st == nil {
		return TransferTypeBinary
	}

	return st.DefaultTransferType
}

// ClientContext exposes read-only facts about a session to the MainDriver and
// to metrics/logging, mirroring the teacher's ClientContext.
type ClientContext interface {
	Path() string
	ID() uint32
	RemoteAddr() net.Addr
	LocalAddr() net.Addr
	GetLastCommand() string
	Close() error
}
