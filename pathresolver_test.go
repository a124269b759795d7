package ftpd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testUser() *User {
	u := NewUser("bob", "secret", "/home/bob", Attrs{Permission: "elr"})
	u.AddRule(NewDirRule("/pub", "/srv/pub", Attrs{Permission: "elrw"}))
	u.AddRule(NewDirRule("/pub/incoming", "/srv/incoming", Attrs{MaxUp: 1024}))

	return u
}

func TestResolvePathRoot(t *testing.T) {
	r := resolvePath(testUser(), "/", "")
	require.Equal(t, "/", r.Path)
	require.Equal(t, "/home/bob", r.RealPath)
	require.Equal(t, "elr", r.Attrs.Permission)
}

func TestResolvePathRuleOverride(t *testing.T) {
	r := resolvePath(testUser(), "/", "/pub")
	require.Equal(t, "/pub", r.Path)
	require.Equal(t, "/srv/pub", r.RealPath)
	require.Equal(t, "elrw", r.Attrs.Permission)
}

func TestResolvePathNestedRuleMergesAttrs(t *testing.T) {
	r := resolvePath(testUser(), "/", "/pub/incoming")
	require.Equal(t, "/srv/incoming", r.RealPath)
	// Permission not overridden by the nested rule, so it's inherited from
	// the less-specific "/pub" rule per the later-wins merge policy.
	require.Equal(t, "elrw", r.Attrs.Permission)
	require.EqualValues(t, 1024, r.Attrs.MaxUp)
}

func TestResolvePathRelative(t *testing.T) {
	r := resolvePath(testUser(), "/pub", "incoming")
	require.Equal(t, "/pub/incoming", r.Path)
	require.Equal(t, "/srv/incoming", r.RealPath)
}

func TestResolvePathCannotEscapeRoot(t *testing.T) {
	r := resolvePath(testUser(), "/", "../../..")
	require.Equal(t, "/", r.Path)
	require.Equal(t, "/home/bob", r.RealPath)
}

func TestResolvePathDotDotFromSubdir(t *testing.T) {
	r := resolvePath(testUser(), "/pub/incoming", "..")
	require.Equal(t, "/pub", r.Path)
	require.Equal(t, "/srv/pub", r.RealPath)
}
