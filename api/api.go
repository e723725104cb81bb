// Package api exposes the survey ledgers and the encryption gateway of a
// node over HTTP. Read endpoints are public. Mutations carry a payload
// signed by the caller, whose address is recovered from the signature.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vocdoni/encrypted-survey/gateway"
	"github.com/vocdoni/encrypted-survey/ledger"
	"github.com/vocdoni/encrypted-survey/log"
)

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host     string
	Port     int
	Registry *ledger.Registry
	Gateway  *gateway.Gateway
}

// API type represents the API HTTP server.
type API struct {
	router   *chi.Mux
	server   *http.Server
	listener net.Listener
	registry *ledger.Registry
	gateway  *gateway.Gateway
	replay   *replayGuard
}

// New creates a new API instance with the given configuration and starts
// serving in the background. Port 0 picks a free port, see Addr.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Registry == nil || conf.Gateway == nil {
		return nil, fmt.Errorf("missing registry or gateway instance")
	}
	a := &API{
		registry: conf.Registry,
		gateway:  conf.Gateway,
		replay:   newReplayGuard(maxSeenRequests, replayWindow),
	}

	// Initialize router
	a.initRouter()
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", conf.Host, conf.Port))
	if err != nil {
		return nil, fmt.Errorf("cannot listen on %s:%d: %w", conf.Host, conf.Port, err)
	}
	a.listener = listener
	a.server = &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("starting API server", "address", listener.Addr().String())
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// Addr returns the address the server listens on.
func (a *API) Addr() string {
	return a.listener.Addr().String()
}

// Shutdown stops the HTTP server, waiting for the in flight requests.
func (a *API) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})

	// surveys
	log.Infow("register handler", "endpoint", SurveysEndpoint, "method", "POST")
	a.router.Post(SurveysEndpoint, a.deploySurvey)
	log.Infow("register handler", "endpoint", SurveysEndpoint, "method", "GET")
	a.router.Get(SurveysEndpoint, a.listSurveys)
	log.Infow("register handler", "endpoint", SurveyEndpoint, "method", "GET")
	a.router.Get(SurveyEndpoint, a.survey)
	log.Infow("register handler", "endpoint", SurveyConfigureEndpoint, "method", "POST")
	a.router.Post(SurveyConfigureEndpoint, a.configureSurvey)
	log.Infow("register handler", "endpoint", SurveyVotesEndpoint, "method", "POST")
	a.router.Post(SurveyVotesEndpoint, a.submitVote)
	log.Infow("register handler", "endpoint", SurveyFinalizeEndpoint, "method", "POST")
	a.router.Post(SurveyFinalizeEndpoint, a.finalizeSurvey)
	log.Infow("register handler", "endpoint", SurveyGrantsEndpoint, "method", "POST")
	a.router.Post(SurveyGrantsEndpoint, a.allowResultFor)
	log.Infow("register handler", "endpoint", SurveyTotalEndpoint, "method", "GET")
	a.router.Get(SurveyTotalEndpoint, a.encryptedTotal)
	log.Infow("register handler", "endpoint", SurveyVoterEndpoint, "method", "GET")
	a.router.Get(SurveyVoterEndpoint, a.voter)
	log.Infow("register handler", "endpoint", SurveyEventsEndpoint, "method", "GET")
	a.router.Get(SurveyEventsEndpoint, a.events)

	// gateway
	log.Infow("register handler", "endpoint", GatewayInfoEndpoint, "method", "GET")
	a.router.Get(GatewayInfoEndpoint, a.gatewayInfo)
	log.Infow("register handler", "endpoint", GatewayInputsEndpoint, "method", "POST")
	a.router.Post(GatewayInputsEndpoint, a.encryptInput)
	log.Infow("register handler", "endpoint", GatewayDecryptEndpoint, "method", "POST")
	a.router.Post(GatewayDecryptEndpoint, a.decrypt)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	// Create the router with a basic middleware stack
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	// Register the API handlers
	a.registerHandlers()
}
