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

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/conclave-labs/conclave/consensus"
	"github.com/conclave-labs/conclave/directory"
	"github.com/conclave-labs/conclave/policy"
	"github.com/conclave-labs/conclave/session"
	"github.com/gorilla/mux"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (a *Api) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.config.Logger.Warn(
			"failed to write response",
			"error", err,
		)
	}
}

// writeError maps domain errors onto HTTP statuses. Unrecognized errors are
// logged and reported as a generic 500 so internals never leak to clients.
func (a *Api) writeError(w http.ResponseWriter, err error) {
	var unknownUser *directory.UnknownUserError
	var status int
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrSessionNotPending),
		errors.Is(err, session.ErrSessionExpired):
		status = http.StatusConflict
	case errors.Is(err, session.ErrSignerNotEligible):
		status = http.StatusForbidden
	case errors.Is(err, session.ErrNotConfigured),
		errors.Is(err, session.ErrEmptySignerSet):
		status = http.StatusPreconditionFailed
	case errors.Is(err, policy.ErrInvalidConfig),
		errors.As(err, &unknownUser):
		status = http.StatusBadRequest
	case errors.Is(err, directory.ErrUnavailable):
		status = http.StatusServiceUnavailable
	default:
		a.config.Logger.Error(
			"request failed",
			"error", err,
		)
		a.writeJSON(
			w,
			http.StatusInternalServerError,
			errorResponse{Error: "internal error"},
		)
		return
	}
	a.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (a *Api) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]bool{"healthy": true})
}

type roleResponse struct {
	Id          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
}

func (a *Api) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.config.Directory.ListRoles()
	if err != nil {
		a.writeError(w, err)
		return
	}
	ret := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		ret = append(ret, roleResponse{
			Id:          role.Id,
			DisplayName: role.DisplayName(),
			Description: role.Description,
		})
	}
	a.writeJSON(w, http.StatusOK, ret)
}

func (a *Api) handleListUsersByRole(w http.ResponseWriter, r *http.Request) {
	roleId := mux.Vars(r)["roleId"]
	users, err := a.config.Directory.ListUsersByRole(roleId)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, users)
}

type consensusResponse struct {
	Configured bool           `json:"configured"`
	Config     *policy.Config `json:"config"`
}

func (a *Api) handleGetConsensus(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.config.PolicyStore.Load()
	if err != nil {
		a.writeError(w, err)
		return
	}
	if cfg == nil {
		// Nothing saved yet: present the default selection
		a.writeJSON(w, http.StatusOK, consensusResponse{
			Configured: false,
			Config:     policy.DefaultConfig(),
		})
		return
	}
	a.writeJSON(w, http.StatusOK, consensusResponse{
		Configured: true,
		Config:     cfg,
	})
}

type putConsensusRequest struct {
	Type              policy.Type `json:"type"`
	RequiredApprovals int         `json:"requiredApprovals"`
	SignerIds         []string    `json:"signerIds"`
	Actor             string      `json:"actor"`
}

func (a *Api) handlePutConsensus(w http.ResponseWriter, r *http.Request) {
	var req putConsensusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(
			w,
			http.StatusBadRequest,
			errorResponse{Error: "invalid request body"},
		)
		return
	}
	cfg := &policy.Config{
		Type:              req.Type,
		RequiredApprovals: req.RequiredApprovals,
		SignerIds:         req.SignerIds,
	}
	if err := cfg.Validate(); err != nil {
		a.writeError(w, err)
		return
	}
	// Make sure every selected signer actually resolves before persisting
	if _, err := a.config.Directory.ResolveSigners(cfg.SignerIds); err != nil {
		a.writeError(w, err)
		return
	}
	if err := a.config.PolicyStore.Save(cfg, req.Actor); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, consensusResponse{
		Configured: true,
		Config:     cfg,
	})
}

type consensusTypeResponse struct {
	Type     policy.Type `json:"type"`
	Required int         `json:"required"`
	Total    int         `json:"total"`
}

func (a *Api) handleConsensusTypes(w http.ResponseWriter, r *http.Request) {
	types := policy.Types()
	ret := make([]consensusTypeResponse, 0, len(types))
	for _, consensusType := range types {
		req, _ := consensusType.Requirement()
		ret = append(ret, consensusTypeResponse{
			Type:     consensusType,
			Required: req.Required,
			Total:    req.Total,
		})
	}
	a.writeJSON(w, http.StatusOK, ret)
}

type createSessionRequest struct {
	ActionType string `json:"actionType"`
	Payload    string `json:"payload"`
}

func (a *Api) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(
			w,
			http.StatusBadRequest,
			errorResponse{Error: "invalid request body"},
		)
		return
	}
	if req.ActionType == "" {
		a.writeJSON(
			w,
			http.StatusBadRequest,
			errorResponse{Error: "actionType is required"},
		)
		return
	}
	sess, err := a.config.Sessions.Create(req.ActionType, []byte(req.Payload))
	if err != nil {
		a.writeError(w, err)
		return
	}
	progress, err := a.config.Sessions.Progress(sess.Id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, progress)
}

func (a *Api) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := a.config.Sessions.List()
	ret := make([]*session.Progress, 0, len(sessions))
	for _, sess := range sessions {
		progress, err := a.config.Sessions.Progress(sess.Id)
		if err != nil {
			continue
		}
		ret = append(ret, progress)
	}
	a.writeJSON(w, http.StatusOK, ret)
}

func (a *Api) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionId := mux.Vars(r)["sessionId"]
	progress, err := a.config.Sessions.Progress(sessionId)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, progress)
}

type castVoteRequest struct {
	UserId   string `json:"userId"`
	Decision string `json:"decision"`
}

type castVoteResponse struct {
	State             session.State `json:"state"`
	ApproveCount      int           `json:"approveCount"`
	RejectCount       int           `json:"rejectCount"`
	RequiredApprovals int           `json:"requiredApprovals"`
}

func (a *Api) handleCastVote(w http.ResponseWriter, r *http.Request) {
	sessionId := mux.Vars(r)["sessionId"]
	var req castVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(
			w,
			http.StatusBadRequest,
			errorResponse{Error: "invalid request body"},
		)
		return
	}
	decision, err := consensus.ParseDecision(req.Decision)
	if err != nil {
		a.writeJSON(
			w,
			http.StatusBadRequest,
			errorResponse{Error: err.Error()},
		)
		return
	}
	result, err := a.config.Sessions.CastVote(sessionId, req.UserId, decision)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, castVoteResponse{
		State:             result.State,
		ApproveCount:      result.ApproveCount,
		RejectCount:       result.RejectCount,
		RequiredApprovals: result.RequiredApprovals,
	})
}
