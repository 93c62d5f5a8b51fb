package redisconn

import (
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresAddress(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestNewConnectsAndPings(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skip("miniredis unavailable in sandbox")
		}
		require.NoError(t, err)
	}
	t.Cleanup(server.Close)

	client, err := New(Config{Address: server.Addr()})
	require.NoError(t, err)
	defer client.Close()
	require.NotNil(t, client)
}

func TestNewFailsOnUnreachableAddress(t *testing.T) {
	_, err := New(Config{Address: "127.0.0.1:1"})
	require.Error(t, err)
}

func TestNewFailsOnMissingCAFile(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skip("miniredis unavailable in sandbox")
		}
		require.NoError(t, err)
	}
	t.Cleanup(server.Close)

	_, err = New(Config{
		Address: server.Addr(),
		TLS:     TLSConfig{Enabled: true, CAFile: "/nonexistent/ca.pem"},
	})
	require.Error(t, err)
}
