// Copyright 2026 Conclave Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api exposes the approval gate over HTTP: directory browsing,
// consensus configuration, and the session/vote workflow
package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/conclave-labs/conclave/directory"
	"github.com/conclave-labs/conclave/policy"
	"github.com/conclave-labs/conclave/session"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ApiConfig struct {
	Logger       *slog.Logger
	Host         string
	Port         uint
	PromGatherer prometheus.Gatherer
	Directory    *directory.Directory
	PolicyStore  *policy.Store
	Sessions     *session.Manager
}

// Api is the HTTP server for the approval gate
type Api struct {
	config ApiConfig
	server *http.Server
}

func NewApi(cfg ApiConfig) *Api {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg.Logger = cfg.Logger.With("component", "api")
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	return &Api{
		config: cfg,
	}
}

// Router builds the HTTP routes. Exposed separately so tests can drive the
// handlers without a listener.
func (a *Api) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthcheck", a.handleHealthcheck).Methods("GET")
	if a.config.PromGatherer != nil {
		router.Handle(
			"/metrics",
			promhttp.HandlerFor(
				a.config.PromGatherer,
				promhttp.HandlerOpts{},
			),
		).Methods("GET")
	}
	router.HandleFunc("/v1/roles", a.handleListRoles).Methods("GET")
	router.HandleFunc(
		"/v1/roles/{roleId}/users",
		a.handleListUsersByRole,
	).Methods("GET")
	router.HandleFunc("/v1/consensus", a.handleGetConsensus).Methods("GET")
	router.HandleFunc("/v1/consensus", a.handlePutConsensus).Methods("PUT")
	router.HandleFunc(
		"/v1/consensus/types",
		a.handleConsensusTypes,
	).Methods("GET")
	router.HandleFunc("/v1/sessions", a.handleCreateSession).Methods("POST")
	router.HandleFunc("/v1/sessions", a.handleListSessions).Methods("GET")
	router.HandleFunc(
		"/v1/sessions/{sessionId}",
		a.handleGetSession,
	).Methods("GET")
	router.HandleFunc(
		"/v1/sessions/{sessionId}/votes",
		a.handleCastVote,
	).Methods("POST")
	return router
}

func (a *Api) Start() error {
	a.config.Logger.Info(
		fmt.Sprintf(
			"starting HTTP listener on %s:%d",
			a.config.Host,
			a.config.Port,
		),
	)
	a.server = &http.Server{
		Addr: fmt.Sprintf(
			"%s:%d",
			a.config.Host,
			a.config.Port,
		),
		Handler:           a.Router(),
		ReadHeaderTimeout: 60 * time.Second,
	}
	return a.server.ListenAndServe()
}

// Stop shuts down the HTTP server, waiting for in-flight requests up to the
// context deadline
func (a *Api) Stop(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}
