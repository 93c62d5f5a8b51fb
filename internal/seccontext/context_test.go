package seccontext

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIsUnauthenticated(t *testing.T) {
	c := New("req-1", "10.0.0.1")
	require.False(t, c.Authenticated())
	require.Zero(t, c.ThreatScore)
	require.NotNil(t, c.Metadata)
}

func TestWithUserSetsAuthenticated(t *testing.T) {
	c := New("req-1", "10.0.0.1")
	c.WithUser("svc-a", []string{"reader", "admin"})
	require.True(t, c.Authenticated())
	require.Equal(t, "svc-a", c.UserID)
	require.Equal(t, []string{"reader", "admin"}, c.Roles)
}

func TestWithUserEmptyIDIsUnauthenticated(t *testing.T) {
	c := New("req-1", "10.0.0.1")
	c.WithUser("", nil)
	require.False(t, c.Authenticated())
}

func TestAddThreatScoreAccumulates(t *testing.T) {
	c := New("req-1", "10.0.0.1")
	c.AddThreatScore(40)
	c.AddThreatScore(30)
	require.Equal(t, uint32(70), c.ThreatScore)
}

func TestAddThreatScoreZeroIsNoop(t *testing.T) {
	c := New("req-1", "10.0.0.1")
	c.AddThreatScore(0)
	require.Zero(t, c.ThreatScore)
}

func TestAddThreatScoreSaturates(t *testing.T) {
	c := New("req-1", "10.0.0.1")
	c.ThreatScore = math.MaxUint32 - 5
	c.AddThreatScore(100)
	require.Equal(t, uint32(math.MaxUint32), c.ThreatScore)
}

func TestIsHighRisk(t *testing.T) {
	c := New("req-1", "10.0.0.1")
	require.False(t, c.IsHighRisk())
	c.AddThreatScore(101)
	require.True(t, c.IsHighRisk())
}

func TestAnnotateLazyInitializes(t *testing.T) {
	c := &Context{}
	c.Annotate("rule", "path-traversal")
	require.Equal(t, "path-traversal", c.Metadata["rule"])
}

func TestSortedRolesDoesNotMutateOriginal(t *testing.T) {
	c := New("req-1", "10.0.0.1")
	c.WithUser("svc-a", []string{"writer", "admin"})
	sorted := c.SortedRoles()
	require.Equal(t, []string{"admin", "writer"}, sorted)
	require.Equal(t, []string{"writer", "admin"}, c.Roles)
}
