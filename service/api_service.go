package service

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/vocdoni/encrypted-survey/api"
	"github.com/vocdoni/encrypted-survey/gateway"
	"github.com/vocdoni/encrypted-survey/ledger"
	"github.com/vocdoni/encrypted-survey/log"
)

// shutdownTimeout bounds the wait for in flight requests on Stop.
const shutdownTimeout = 10 * time.Second

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	registry *ledger.Registry
	gateway  *gateway.Gateway
	api      *api.API
	mu       sync.Mutex
	cancel   context.CancelFunc
	host     string
	port     int
}

// NewAPI creates a new APIService instance serving registry and gw.
func NewAPI(registry *ledger.Registry, gw *gateway.Gateway, host string, port int) *APIService {
	return &APIService{
		registry: registry,
		gateway:  gw,
		host:     host,
		port:     port,
	}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}

	ctx, as.cancel = context.WithCancel(ctx)

	var err error
	as.api, err = api.New(&api.APIConfig{
		Host:     as.host,
		Port:     as.port,
		Registry: as.registry,
		Gateway:  as.gateway,
	})
	if err != nil {
		as.cancel()
		as.cancel = nil
		return fmt.Errorf("failed to start API server: %w", err)
	}

	// shut down with the parent context too
	srv := as.api
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warnw("API server shutdown", "error", err.Error())
		}
	}()
	return nil
}

// Stop halts the API server.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		as.cancel()
		as.cancel = nil
	}
}

// HostPort returns the host and port of the API server. Once started, the
// port is the one actually listened on.
func (as *APIService) HostPort() (string, int) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.api == nil {
		return as.host, as.port
	}
	host, port, err := net.SplitHostPort(as.api.Addr())
	if err != nil {
		return as.host, as.port
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return as.host, as.port
	}
	return host, p
}
