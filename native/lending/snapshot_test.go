package lending

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func populatedHub(t *testing.T) *Hub {
	t.Helper()
	h, _ := newTestHub()
	_, err := h.Spoke("s1").User("u1").Supply(big.NewInt(1_234_567))
	require.NoError(t, err)
	_, err = h.Spoke("s2").User("u2").Borrow(big.NewInt(400))
	require.NoError(t, err)
	return h
}

func TestSnapshotTree(t *testing.T) {
	snap := populatedHub(t).Snapshot()
	require.Equal(t, LevelHub, snap.Level)
	require.Len(t, snap.Children, 2)

	user, ok := snap.Find(LevelUser, "u2")
	require.True(t, ok)
	require.EqualValues(t, 1_000, user.RiskPremiumBps)
	require.Equal(t, "400", user.Debt.Base.String())
	require.Equal(t, "0", user.GhostDebt.String())

	spoke, ok := snap.Find(LevelSpoke, "s1")
	require.True(t, ok)
	require.Equal(t, "1234567", spoke.SuppliedShares.String())
	require.Nil(t, spoke.AvailableLiquidity)

	_, ok = snap.Find(LevelUser, "missing")
	require.False(t, ok)
}

func TestSnapshotStringGroupsDigits(t *testing.T) {
	out := populatedHub(t).Snapshot().String()
	require.True(t, strings.HasPrefix(out, "--- hub ---\n"))
	require.Contains(t, out, "--- spoke s1 ---")
	require.Contains(t, out, "1,234,567")
	require.Contains(t, out, "10.00%")
}

func TestSnapshotYAMLUsesDecimalStrings(t *testing.T) {
	snap := populatedHub(t).Snapshot()
	raw, err := yaml.Marshal(snap)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &decoded))
	require.Equal(t, "hub", decoded["level"])
	require.Equal(t, "1234167", decoded["availableLiquidity"])
	require.Len(t, decoded["children"], 2)
}

func TestSnapshotLogValueSummarisesChildren(t *testing.T) {
	v := populatedHub(t).Snapshot().LogValue()
	attrs := v.Group()
	found := map[string]string{}
	for _, a := range attrs {
		found[a.Key] = a.Value.String()
	}
	require.Equal(t, "hub", found["level"])
	require.Equal(t, "2", found["children"])
	require.Equal(t, "1234167", found["availableLiquidity"])
}
