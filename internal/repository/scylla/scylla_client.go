package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"admin-auth/internal/config"
	"admin-auth/internal/util"
)

type ScyllaClient struct {
	Session  *gocql.Session
	keyspace string
}

// NewScyllaClient connects to the cluster. TLS material is read from the
// SCYLLA_TLS_* paths outside development.
func NewScyllaClient(cfg config.ScyllaConfig, development bool) (*ScyllaClient, error) {
	cluster := gocql.NewCluster(cfg.Nodes...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 5 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 2
	cluster.SocketKeepalive = 30 * time.Second
	// callers own retry policy
	cluster.RetryPolicy = &gocql.SimpleRetryPolicy{NumRetries: 0}

	if !development {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 util.GetEnv("SCYLLA_TLS_CA_FILE", "/app/certs/scylla-ca.pem"),
			CertPath:               util.GetEnv("SCYLLA_TLS_CERT_FILE", ""),
			KeyPath:                util.GetEnv("SCYLLA_TLS_KEY_FILE", ""),
			EnableHostVerification: true,
		}
	}

	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	util.Info("ScyllaDB client initialized",
		util.Strings("nodes", cfg.Nodes),
		util.String("keyspace", cfg.Keyspace))

	return &ScyllaClient{Session: session, keyspace: cfg.Keyspace}, nil
}

// EnsureSchema creates the otp_records table when missing. Development only;
// production schemas are applied out of band.
func (s *ScyllaClient) EnsureSchema(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS otp_records (
        email text PRIMARY KEY,
        credential_hash text,
        expires_at bigint,
        created_at bigint,
        algorithm text
    ) WITH default_time_to_live = 0`
	if err := s.Session.Query(stmt).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to create otp_records table: %w", err)
	}
	return nil
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
}

func (s *ScyllaClient) HealthCheck(ctx context.Context) error {
	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}
	return nil
}
