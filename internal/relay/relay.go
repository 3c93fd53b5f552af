// Package relay assembles the fleet message relay: the exchange core, the
// sqlite log behind it and the HTTP/MQTT frontends in front of it.
package relay

import (
	"context"

	"github.com/fleethub-io/fleethub/internal/relay/core/service"
	"github.com/fleethub-io/fleethub/internal/relay/server"
	"github.com/fleethub-io/fleethub/internal/relay/storage/sqlite"
	"github.com/fleethub-io/fleethub/pkg/log"
)

// RelayServer is the main application struct for the relay.
type RelayServer struct {
	serverManager *server.Manager
	svc           *service.Service
	store         *sqlite.Store
}

// Service exposes the exchange core, e.g. for live reconfiguration.
func (a *RelayServer) Service() *service.Service {
	return a.svc
}

// Run starts the application components and blocks until the context is
// cancelled or a server fails.
func (a *RelayServer) Run(ctx context.Context) error {
	log.Info("starting fleet relay")

	// Rebuild presence from the surviving log before accepting traffic,
	// so commands to cars that were connected before the restart work.
	if err := a.svc.RestorePresence(ctx); err != nil {
		return err
	}

	go a.svc.RunRetention(ctx)

	// Parked long-polls must resolve before the HTTP server can drain.
	stop := context.AfterFunc(ctx, a.svc.CloseWaits)
	defer stop()

	err := a.serverManager.Start(ctx)

	if cerr := a.store.Close(); cerr != nil {
		log.Error(cerr, "failed to close message store")
	}
	return err
}
