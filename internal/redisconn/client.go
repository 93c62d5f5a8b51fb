// Package redisconn builds a valkey-go client shared by the distributed
// rate limiter and the Sink's Redis mirror, factored out of the teacher's
// decision-cache Redis construction so both adapters build their client
// identically (TLS, RESP2 pinning, single-client mode, startup ping).
package redisconn

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

// TLSConfig configures optional TLS for the Redis connection.
type TLSConfig struct {
	Enabled bool
	CAFile  string
}

// Config configures the shared Redis client.
type Config struct {
	Address  string
	Username string
	Password string
	DB       int
	TLS      TLSConfig
}

// New builds and pings a valkey client, matching the teacher's decision
// cache Redis construction.
func New(cfg Config) (valkey.Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("redisconn: address required")
	}

	option := valkey.ClientOption{
		InitAddress:       []string{cfg.Address},
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	}

	if cfg.TLS.Enabled {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if cfg.TLS.CAFile != "" {
			caData, err := os.ReadFile(cfg.TLS.CAFile)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil, fmt.Errorf("redisconn: read ca file: %w", err)
				}
				return nil, fmt.Errorf("redisconn: read ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caData) {
				return nil, errors.New("redisconn: ca file contains no certificates")
			}
			tlsConfig.RootCAs = pool
		}
		option.TLSConfig = tlsConfig
	}

	client, err := valkey.NewClient(option)
	if err != nil {
		return nil, fmt.Errorf("redisconn: new client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redisconn: ping: %w", err)
	}

	return client, nil
}
