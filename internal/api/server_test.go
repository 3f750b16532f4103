package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htbsim/htbsim/internal/api"
	"github.com/htbsim/htbsim/internal/events"
	"github.com/htbsim/htbsim/internal/logging"
	"github.com/htbsim/htbsim/internal/profile"
	"github.com/htbsim/htbsim/internal/store"
)

const testSecret = "test-secret"

func bearerToken(t *testing.T) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "test-client",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func newTestServer() (*api.Server, store.Store) {
	st := store.NewMemoryStore()
	srv := api.NewServer(api.Config{JWTSecret: testSecret}, st, events.NopPublisher{}, logging.Nop())
	return srv, st
}

func TestCreateSimulationRequiresBearerToken(t *testing.T) {
	srv, _ := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/v1/simulations", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateSimulationReturnsAcceptedAndIsPollable(t *testing.T) {
	srv, _ := newTestServer()

	body := map[string]any{
		"profile_name":     "unit-test",
		"duration_seconds": 0.05,
		"profile": profile.Node{
			Name: "root", Rate: 1_000_000, Ceil: 1_000_000,
			Children: []profile.Node{
				{Name: "L", Rate: 1_000_000, Ceil: 1_000_000, Prio: 0, InputRate: 1_000_000},
			},
		},
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/simulations", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var created store.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.RunID)
	assert.Equal(t, store.StatusPending, created.Status)

	require.Eventually(t, func() bool {
		getReq := httptest.NewRequest(http.MethodGet, "/v1/simulations/"+created.RunID, nil)
		getReq.Header.Set("Authorization", bearerToken(t))
		getRec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(getRec, getReq)
		if getRec.Code != http.StatusOK {
			return false
		}
		var got store.RunSummary
		_ = json.Unmarshal(getRec.Body.Bytes(), &got)
		return got.Status == store.StatusDone
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGetTopologyReturnsNodesWithRateCeilAndParent(t *testing.T) {
	srv, _ := newTestServer()

	body := map[string]any{
		"profile_name":     "topology-test",
		"duration_seconds": 0.05,
		"profile": profile.Node{
			Name: "root", Rate: 1_000_000, Ceil: 1_000_000,
			Children: []profile.Node{
				{Name: "L", Rate: 1_000_000, Ceil: 1_000_000, Prio: 0, InputRate: 1_000_000},
			},
		},
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/simulations", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created store.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	require.Eventually(t, func() bool {
		getReq := httptest.NewRequest(http.MethodGet, "/v1/simulations/"+created.RunID, nil)
		getReq.Header.Set("Authorization", bearerToken(t))
		getRec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(getRec, getReq)
		var got store.RunSummary
		_ = json.Unmarshal(getRec.Body.Bytes(), &got)
		return got.Status == store.StatusDone
	}, 2*time.Second, 10*time.Millisecond)

	topoReq := httptest.NewRequest(http.MethodGet, "/v1/simulations/"+created.RunID+"/topology", nil)
	topoReq.Header.Set("Authorization", bearerToken(t))
	topoRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(topoRec, topoReq)
	require.Equal(t, http.StatusOK, topoRec.Code)

	var resp struct {
		RunID string `json:"run_id"`
		Nodes []struct {
			Name      string  `json:"name"`
			Rate      float64 `json:"rate"`
			Ceil      float64 `json:"ceil"`
			Parent    string  `json:"parent"`
			IsLeaf    bool    `json:"is_leaf"`
			StatsLine string  `json:"stats_line"`
		} `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(topoRec.Body.Bytes(), &resp))
	require.Len(t, resp.Nodes, 2)

	byName := make(map[string]struct {
		Name      string  `json:"name"`
		Rate      float64 `json:"rate"`
		Ceil      float64 `json:"ceil"`
		Parent    string  `json:"parent"`
		IsLeaf    bool    `json:"is_leaf"`
		StatsLine string  `json:"stats_line"`
	}, len(resp.Nodes))
	for _, n := range resp.Nodes {
		byName[n.Name] = n
	}
	assert.False(t, byName["root"].IsLeaf)
	assert.Equal(t, "root", byName["L"].Parent)
	assert.Equal(t, 1_000_000.0, byName["L"].Ceil)
	assert.NotEmpty(t, byName["L"].StatsLine)
}

func TestDeleteSimulationRequiresAdminConfig(t *testing.T) {
	srv, st := newTestServer()
	require.NoError(t, st.SaveRun(context.Background(), store.RunSummary{RunID: "r1", Status: store.StatusDone}))

	req := httptest.NewRequest(http.MethodDelete, "/v1/simulations/r1", nil)
	req.Header.Set("Authorization", bearerToken(t))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
