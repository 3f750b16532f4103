//go:build integration
// +build integration

package store_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/htbsim/htbsim/internal/store"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresStoreSuite exercises PostgresStore against a real Postgres
// instance brought up in a disposable container.
type PostgresStoreSuite struct {
	suite.Suite
	ctx       context.Context
	container testcontainers.Container
	store     *store.PostgresStore
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	if os.Getenv("CI") == "true" || os.Getenv("SKIP_DOCKER_TESTS") == "true" {
		s.T().Skip("skipping Docker-dependent test")
		return
	}

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "htbsim",
			"POSTGRES_PASSWORD": "htbsim",
			"POSTGRES_DB":       "htbsim_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}

	var err error
	s.container, err = testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T(), err)

	host, err := s.container.Host(s.ctx)
	require.NoError(s.T(), err)
	port, err := s.container.MappedPort(s.ctx, "5432/tcp")
	require.NoError(s.T(), err)

	dsn := fmt.Sprintf("postgres://htbsim:htbsim@%s:%s/htbsim_test?sslmode=disable", host, port.Port())
	s.store, err = store.OpenPostgres(s.ctx, dsn)
	require.NoError(s.T(), err)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresStoreSuite) TestSaveAndGetRoundTrips() {
	if s.store == nil {
		s.T().Skip("store not initialized")
	}

	run := store.RunSummary{
		RunID:       "run-1",
		ProfileName: "edge-office",
		Status:      store.StatusDone,
		StartedAt:   time.Now().Add(-time.Second),
		FinishedAt:  time.Now(),
		Leaves: []store.LeafSummary{
			{Name: "voip", PacketsSent: 10, BytesSent: 1500, BytesPerSec: 1500, StatsLine: "voip sent: 10 packets(1500 B) rate: 1500 Bps"},
		},
		Topology: []store.TopologyNode{
			{Name: "root", Rate: 2_000_000, Ceil: 2_000_000},
			{Name: "voip", Rate: 1_000_000, Ceil: 1_500_000, Parent: "root", IsLeaf: true},
		},
	}

	require.NoError(s.T(), s.store.SaveRun(s.ctx, run))

	got, ok, err := s.store.GetRun(s.ctx, "run-1")
	require.NoError(s.T(), err)
	require.True(s.T(), ok)
	require.Equal(s.T(), store.StatusDone, got.Status)
	require.Len(s.T(), got.Leaves, 1)
	require.Equal(s.T(), "voip", got.Leaves[0].Name)
	require.Len(s.T(), got.Topology, 2)
	require.Equal(s.T(), "root", got.Topology[0].Name)
	require.Equal(s.T(), "root", got.Topology[1].Parent)
}

func (s *PostgresStoreSuite) TestSetStatusUpdatesExistingRow() {
	if s.store == nil {
		s.T().Skip("store not initialized")
	}

	run := store.RunSummary{RunID: "run-2", ProfileName: "p", Status: store.StatusRunning, StartedAt: time.Now()}
	require.NoError(s.T(), s.store.SaveRun(s.ctx, run))
	require.NoError(s.T(), s.store.SetStatus(s.ctx, "run-2", store.StatusFailed))

	got, ok, err := s.store.GetRun(s.ctx, "run-2")
	require.NoError(s.T(), err)
	require.True(s.T(), ok)
	require.Equal(s.T(), store.StatusFailed, got.Status)
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}
