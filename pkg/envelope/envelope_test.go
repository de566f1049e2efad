package envelope

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdnbridge/bridged/pkg/types"
)

// TestEncodeDecodeKinds checks that every message kind survives the envelope
func TestEncodeDecodeKinds(t *testing.T) {
	pair := types.HostPairKey{Src: "h1", Dst: "h4"}
	segments := []types.PathSegment{
		{In: types.PortRef{Switch: 1, Port: 2}, Out: types.PortRef{Switch: 3, Port: 4}, Action: types.SegmentActionAdd},
		{In: types.PortRef{Switch: 5, Port: 6}, Out: types.PortRef{Switch: 7, Port: 8}, Action: types.SegmentActionAdd},
	}

	tests := []struct {
		name string
		msg  Message
	}{
		{"find", &Find{}},
		{"keep alive", &KeepAlive{InstanceID: 42, Role: types.RoleSlave, ReceiverIdentity: "q-1"}},
		{"discover", &Discover{DomainID: 1001, TEThreshold: 0.95}},
		{"topology", &Topology{
			DomainID: 1001,
			Hosts:    []types.Host{{Name: "h1", MAC: "00:00:00:00:00:01", IP: "10.0.0.1"}},
			Switches: []uint64{1, 2},
			UnknownLinks: []types.UnknownLink{
				{Key: types.UnknownLinkKey{Switch: 1, Port: 3, RemoteSwitch: 9}, SpeedBps: 1e9, DomainID: 1002},
			},
			TEThreshold: 0.95,
			Paths:       []types.InterDomainPathRecord{{Key: pair, Segments: segments}},
		}},
		{"get topo", &GetTopo{}},
		{"get id", &GetID{}},
		{"unknown switch", &UnknownSwitch{DomainID: 1001, Switch: 1, Port: 3, DestSwitch: 9, SpeedBps: 1e9}},
		{"compute paths", &ComputePaths{Paths: []types.InterDomainPathRecord{{Key: pair, Segments: segments}}}},
		{"ctrl dead", &CtrlDead{DomainID: 1002}},
		{"dead port", &DeadPort{DomainID: 1001, Switch: 1, Port: 3, ToDomainID: 1002}},
		{"link traffic", &LinkTraffic{DomainID: 1001, Switch: 1, Port: 3, TrafficBps: 5e8}},
		{"congestion", &Congestion{DomainID: 1001, Switch: 1, Port: 3, TrafficBps: 9.9e8, Paths: []types.HostPairKey{pair}, TEThreshold: 0.95}},
		{"egress change", &EgressChange{DomainID: 1001, Key: pair, Segments: segments}},
		{"ingress change", &IngressChange{DomainID: 1001, Key: pair, Segments: segments}},
		{"processed congestion", &ProcessedCongestion{Switch: 1, Port: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := Encode(tt.msg)
			require.NoError(t, err)

			decoded, err := Decode(body)
			require.NoError(t, err)
			assert.Equal(t, tt.msg.Kind(), decoded.Kind())
			assert.Equal(t, tt.msg, decoded)
		})
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	body, err := json.Marshal(map[string]string{"kind": "bogus"})
	require.NoError(t, err)

	_, err = Decode(body)
	var unknown *UnknownKindError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, Kind("bogus"), unknown.Kind)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte("not json at all"))
	assert.Error(t, err)

	// Valid envelope with a payload of the wrong shape
	_, err = Decode([]byte(`{"kind":"keep_alive","data":{"instance_id":"not-a-number"}}`))
	assert.Error(t, err)
}

// TestKeepAliveWireFields pins the field names the root and peers rely on
func TestKeepAliveWireFields(t *testing.T) {
	body, err := Encode(&KeepAlive{InstanceID: 7, Role: types.RoleMaster, ReceiverIdentity: "q-7"})
	require.NoError(t, err)

	var w struct {
		Kind string          `json:"kind"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &w))
	assert.Equal(t, "keep_alive", w.Kind)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Data, &fields))
	assert.Contains(t, fields, "instance_id")
	assert.Contains(t, fields, "role")
	assert.Contains(t, fields, "receiver_identity")
}
