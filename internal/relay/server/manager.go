package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/fleethub-io/fleethub/pkg/log"
)

// Server is the common interface for all protocol frontends (http, mqtt).
type Server interface {
	Start(ctx context.Context) error
}

// Manager runs a set of servers as one unit: all start together and the
// first failure tears the group down.
type Manager struct {
	servers []Server
}

func NewManager(servers ...Server) *Manager {
	return &Manager{servers: servers}
}

// Start launches all servers in parallel and waits for termination.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range m.servers {
		srv := srv
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info("all servers starting", "count", len(m.servers))
	return g.Wait()
}
