package hosting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdnbridge/bridged/pkg/types"
)

func TestLoadStaticApp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
te_threshold: 0.85
hosts:
  - name: h1
    mac: "00:00:00:00:00:01"
    ip: 10.0.0.1
switches: [1, 2]
links:
  - switch: 1
    port: 3
    remote_switch: 99
    speed_bps: 10000000000
    domain_id: 2
`), 0o644))

	app, err := LoadStaticApp(path)
	require.NoError(t, err)

	assert.Equal(t, 0.85, app.TEThreshold())
	assert.Equal(t, []types.Host{{Name: "h1", MAC: "00:00:00:00:00:01", IP: "10.0.0.1"}}, app.Hosts())
	assert.Equal(t, []uint64{1, 2}, app.Switches())

	links := app.UnknownLinks()
	require.Len(t, links, 1)
	assert.Equal(t, types.UnknownLinkKey{Switch: 1, Port: 3, RemoteSwitch: 99}, links[0].Key)
	assert.Equal(t, uint64(10_000_000_000), links[0].SpeedBps)
	assert.Equal(t, int64(2), links[0].DomainID)
	assert.Equal(t, uint64(10_000_000_000), app.PortSpeed(1, 3))
	assert.Zero(t, app.PortSpeed(1, 4))
}

func TestLoadStaticAppErrors(t *testing.T) {
	_, err := LoadStaticApp(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("switches: {not: a list}\n"), 0o644))
	_, err = LoadStaticApp(path)
	assert.Error(t, err)
}

func TestStaticAppRoleTransitions(t *testing.T) {
	app := NewStaticApp(0.9)
	assert.Equal(t, types.RoleUnknown, app.Role())

	app.Promote()
	assert.Equal(t, types.RoleMaster, app.Role())

	app.Demote()
	assert.Equal(t, types.RoleSlave, app.Role())
}

func TestStaticAppUnknownLinkTable(t *testing.T) {
	app := NewStaticApp(0.9)
	k1 := types.UnknownLinkKey{Switch: 1, Port: 1, RemoteSwitch: 10}
	k2 := types.UnknownLinkKey{Switch: 1, Port: 2, RemoteSwitch: 11}
	k3 := types.UnknownLinkKey{Switch: 2, Port: 1, RemoteSwitch: 12}

	app.AddUnknownLink(k1, 1e9, 0)
	app.AddUnknownLink(k2, 1e9, 3)
	app.AddUnknownLink(k3, 1e9, 3)

	app.ResolveUnknownLink(k1, 2)
	links := app.UnknownLinks()
	assert.Len(t, links, 3)
	for _, l := range links {
		if l.Key == k1 {
			assert.Equal(t, int64(2), l.DomainID)
		}
	}

	dom, ok := app.RemoveUnknownLink(k1)
	assert.True(t, ok)
	assert.Equal(t, int64(2), dom)
	_, ok = app.RemoveUnknownLink(k1)
	assert.False(t, ok)

	assert.Equal(t, 2, app.RemoveLinksToDomain(3))
	assert.Empty(t, app.UnknownLinks())
}

func TestStaticAppInstallPathSegments(t *testing.T) {
	app := NewStaticApp(0.9)
	key := types.HostPairKey{Src: "h1", Dst: "h2"}
	segs := []types.PathSegment{{
		In:     types.PortRef{Switch: 1, Port: 1},
		Out:    types.PortRef{Switch: 1, Port: 2},
		Action: types.SegmentActionAdd,
	}}

	assert.Nil(t, app.InstalledSegments(key))
	app.InstallPathSegments(key, segs)
	assert.Equal(t, segs, app.InstalledSegments(key))

	// Installed copies are detached from the caller's slice
	segs[0].Out = types.PortRef{Switch: 9, Port: 9}
	assert.Equal(t, types.PortRef{Switch: 1, Port: 2}, app.InstalledSegments(key)[0].Out)
}
