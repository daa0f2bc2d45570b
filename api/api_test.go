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

package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/conclave-labs/conclave/api"
	"github.com/conclave-labs/conclave/database"
	"github.com/conclave-labs/conclave/directory"
	"github.com/conclave-labs/conclave/event"
	"github.com/conclave-labs/conclave/policy"
	"github.com/conclave-labs/conclave/session"
	"github.com/stretchr/testify/require"
)

type failingProvider struct{}

func (failingProvider) GetRoles() ([]directory.Role, error) {
	return nil, errors.New("ldap timeout")
}

func (failingProvider) GetUsers() ([]directory.User, error) {
	return nil, errors.New("ldap timeout")
}

func testProvider() directory.Provider {
	return &directory.StaticProvider{
		Roles: []directory.Role{
			{Id: "owner", Description: "Account owners"},
			{Id: "complianceManager"},
		},
		Users: []directory.User{
			{Id: "u1", Name: "Alice", RoleId: "owner"},
			{Id: "u2", Name: "Bob", RoleId: "complianceManager"},
			{Id: "u3", Name: "Carol"},
		},
	}
}

func newTestApi(t *testing.T, provider directory.Provider) *api.Api {
	t.Helper()
	db, err := database.New(&database.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close() //nolint:errcheck
	})
	bus := event.NewBus(nil, nil)
	t.Cleanup(bus.Stop)
	dir := directory.NewDirectory(directory.DirectoryConfig{
		Provider: provider,
	})
	store := policy.NewStore(policy.StoreConfig{
		EventBus: bus,
		Database: db,
	})
	manager := session.NewManager(session.ManagerConfig{
		EventBus:    bus,
		Database:    db,
		Directory:   dir,
		PolicyStore: store,
	})
	return api.NewApi(api.ApiConfig{
		Directory:   dir,
		PolicyStore: store,
		Sessions:    manager,
	})
}

func doRequest(
	t *testing.T,
	a *api.Api,
	method string,
	path string,
	body any,
) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req := httptest.NewRequest(method, path, &reqBody)
	recorder := httptest.NewRecorder()
	a.Router().ServeHTTP(recorder, req)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var ret T
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&ret))
	return ret
}

func saveTestConfig(t *testing.T, a *api.Api) {
	t.Helper()
	recorder := doRequest(t, a, http.MethodPut, "/v1/consensus", map[string]any{
		"type":              "2of3",
		"requiredApprovals": 2,
		"signerIds":         []string{"u1", "u2", "u3"},
		"actor":             "admin",
	})
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestHealthcheck(t *testing.T) {
	a := newTestApi(t, testProvider())
	recorder := doRequest(t, a, http.MethodGet, "/healthcheck", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestListRoles(t *testing.T) {
	a := newTestApi(t, testProvider())
	recorder := doRequest(t, a, http.MethodGet, "/v1/roles", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	roles := decodeBody[[]map[string]any](t, recorder)
	require.Len(t, roles, 2)
	require.Equal(t, "Owner", roles[0]["displayName"])
	require.Equal(t, "Compliance Manager", roles[1]["displayName"])
}

func TestListRolesUnavailable(t *testing.T) {
	a := newTestApi(t, failingProvider{})
	recorder := doRequest(t, a, http.MethodGet, "/v1/roles", nil)
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)
}

func TestListUsersByRole(t *testing.T) {
	a := newTestApi(t, testProvider())
	recorder := doRequest(t, a, http.MethodGet, "/v1/roles/owner/users", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	users := decodeBody[[]directory.User](t, recorder)
	require.Len(t, users, 1)
	require.Equal(t, "u1", users[0].Id)

	// Unknown role is an empty list, not an error
	recorder = doRequest(t, a, http.MethodGet, "/v1/roles/nobody/users", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Empty(t, decodeBody[[]directory.User](t, recorder))
}

func TestGetConsensusDefault(t *testing.T) {
	a := newTestApi(t, testProvider())
	recorder := doRequest(t, a, http.MethodGet, "/v1/consensus", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody[map[string]any](t, recorder)
	require.Equal(t, false, body["configured"])
}

func TestPutConsensusRoundTrip(t *testing.T) {
	a := newTestApi(t, testProvider())
	saveTestConfig(t, a)
	recorder := doRequest(t, a, http.MethodGet, "/v1/consensus", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody[map[string]any](t, recorder)
	require.Equal(t, true, body["configured"])
}

func TestPutConsensusInvalid(t *testing.T) {
	a := newTestApi(t, testProvider())
	// Signer count does not match the type
	recorder := doRequest(t, a, http.MethodPut, "/v1/consensus", map[string]any{
		"type":              "2of3",
		"requiredApprovals": 2,
		"signerIds":         []string{"u1"},
		"actor":             "admin",
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	// Unknown signer IDs are rejected before anything persists
	recorder = doRequest(t, a, http.MethodPut, "/v1/consensus", map[string]any{
		"type":              "2of3",
		"requiredApprovals": 2,
		"signerIds":         []string{"u1", "u2", "ghost"},
		"actor":             "admin",
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	body := decodeBody[map[string]string](t, recorder)
	require.Contains(t, body["error"], "ghost")
}

func TestConsensusTypes(t *testing.T) {
	a := newTestApi(t, testProvider())
	recorder := doRequest(t, a, http.MethodGet, "/v1/consensus/types", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	types := decodeBody[[]map[string]any](t, recorder)
	require.Len(t, types, 4)
	require.Equal(t, "2of3", types[0]["type"])
}

func TestCreateSessionUnconfigured(t *testing.T) {
	a := newTestApi(t, testProvider())
	recorder := doRequest(t, a, http.MethodPost, "/v1/sessions", map[string]any{
		"actionType": "treasury.transfer",
	})
	require.Equal(t, http.StatusPreconditionFailed, recorder.Code)
}

func TestSessionWorkflow(t *testing.T) {
	a := newTestApi(t, testProvider())
	saveTestConfig(t, a)

	recorder := doRequest(t, a, http.MethodPost, "/v1/sessions", map[string]any{
		"actionType": "treasury.transfer",
		"payload":    `{"amount":100}`,
	})
	require.Equal(t, http.StatusCreated, recorder.Code)
	created := decodeBody[session.Progress](t, recorder)
	require.NotEmpty(t, created.SessionId)
	require.Equal(t, session.StatePending, created.State)
	require.Equal(t, 3, created.TotalSigners)

	votePath := "/v1/sessions/" + created.SessionId + "/votes"
	recorder = doRequest(t, a, http.MethodPost, votePath, map[string]any{
		"userId":   "u1",
		"decision": "approve",
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	vote := decodeBody[map[string]any](t, recorder)
	require.Equal(t, "PENDING", vote["state"])

	// Non-signer is refused
	recorder = doRequest(t, a, http.MethodPost, votePath, map[string]any{
		"userId":   "intruder",
		"decision": "approve",
	})
	require.Equal(t, http.StatusForbidden, recorder.Code)

	recorder = doRequest(t, a, http.MethodPost, votePath, map[string]any{
		"userId":   "u2",
		"decision": "approve",
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	vote = decodeBody[map[string]any](t, recorder)
	require.Equal(t, "APPROVED", vote["state"])

	// Votes after resolution conflict
	recorder = doRequest(t, a, http.MethodPost, votePath, map[string]any{
		"userId":   "u3",
		"decision": "reject",
	})
	require.Equal(t, http.StatusConflict, recorder.Code)

	recorder = doRequest(
		t,
		a,
		http.MethodGet,
		"/v1/sessions/"+created.SessionId,
		nil,
	)
	require.Equal(t, http.StatusOK, recorder.Code)
	progress := decodeBody[session.Progress](t, recorder)
	require.Equal(t, session.StateApproved, progress.State)
	require.Equal(t, 2, progress.ApprovedCount)

	recorder = doRequest(t, a, http.MethodGet, "/v1/sessions", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Len(t, decodeBody[[]session.Progress](t, recorder), 1)
}

func TestVoteOnUnknownSession(t *testing.T) {
	a := newTestApi(t, testProvider())
	saveTestConfig(t, a)
	recorder := doRequest(
		t,
		a,
		http.MethodPost,
		"/v1/sessions/does-not-exist/votes",
		map[string]any{"userId": "u1", "decision": "approve"},
	)
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestVoteInvalidDecision(t *testing.T) {
	a := newTestApi(t, testProvider())
	saveTestConfig(t, a)
	recorder := doRequest(t, a, http.MethodPost, "/v1/sessions", map[string]any{
		"actionType": "treasury.transfer",
	})
	require.Equal(t, http.StatusCreated, recorder.Code)
	created := decodeBody[session.Progress](t, recorder)
	recorder = doRequest(
		t,
		a,
		http.MethodPost,
		"/v1/sessions/"+created.SessionId+"/votes",
		map[string]any{"userId": "u1", "decision": "maybe"},
	)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}
