package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BetterCallFirewall/CertiAudit/internal/config"
	"github.com/BetterCallFirewall/CertiAudit/internal/driven"
	"github.com/BetterCallFirewall/CertiAudit/internal/models"
	"github.com/BetterCallFirewall/CertiAudit/internal/storage"
	"github.com/BetterCallFirewall/CertiAudit/internal/websocket"
)

type stubAuditor struct {
	report *models.AuditReport
	err    error
	got    driven.AnalyzeRequest
}

func (s *stubAuditor) Analyze(_ context.Context, req driven.AnalyzeRequest) (*models.AuditReport, error) {
	s.got = req
	return s.report, s.err
}

type fixture struct {
	srv      *httptest.Server
	store    *storage.MemoryStorage
	auditor  *stubAuditor
	lastType config.ProjectType
}

func newFixture(t *testing.T, factoryErr error) *fixture {
	t.Helper()
	cfg := config.Default()
	f := &fixture{
		store: storage.NewMemoryStorage(),
		auditor: &stubAuditor{report: &models.AuditReport{
			AnalysisSummary: "one issue",
			Vulnerabilities: []models.Vulnerability{{
				Name: "Reentrancy", Severity: models.SeverityHigh, Description: "d", FixSuggestion: "r", Line: 3,
			}},
		}},
	}
	factory := func(pt config.ProjectType, _ driven.Broadcaster) (Auditor, error) {
		if factoryErr != nil {
			return nil, factoryErr
		}
		f.lastType = pt
		return f.auditor, nil
	}
	s := NewServer(&cfg, f.store, websocket.NewHub(), factory)
	f.srv = httptest.NewServer(s.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func writeContract(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("contract C {}"), 0o644))
	return path
}

func postAudit(t *testing.T, f *fixture, req AuditRequest) *http.Response {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	resp, err := http.Post(f.srv.URL+"/api/audits", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCreateAudit_StoresAndReturnsRecord(t *testing.T) {
	f := newFixture(t, nil)
	path := writeContract(t, "Vault.rs")

	resp := postAudit(t, f, AuditRequest{File: path, Mode: "gas", PoC: true, Intent: "vault"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var rec storage.AuditRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, config.ProjectSolana, rec.ProjectType, "extension decides the ecosystem")
	assert.Equal(t, models.ModeGas, rec.Mode)
	require.NotNil(t, rec.Report)
	assert.Len(t, rec.Report.Vulnerabilities, 1)

	assert.Equal(t, config.ProjectSolana, f.lastType)
	assert.Equal(t, "contract C {}", f.auditor.got.ContractCode)
	assert.Equal(t, "vault", f.auditor.got.Intent)
	assert.True(t, f.auditor.got.GeneratePoC)

	_, ok := f.store.GetAudit(rec.ID)
	assert.True(t, ok)
}

func TestCreateAudit_ExplicitTypeWins(t *testing.T) {
	f := newFixture(t, nil)
	path := writeContract(t, "Token.sol")

	resp := postAudit(t, f, AuditRequest{File: path, Type: "solana"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, config.ProjectSolana, f.lastType)
}

func TestCreateAudit_Errors(t *testing.T) {
	path := writeContract(t, "Token.sol")

	tests := []struct {
		name       string
		factoryErr error
		req        AuditRequest
		want       int
	}{
		{"missing file field", nil, AuditRequest{}, http.StatusBadRequest},
		{"file not found", nil, AuditRequest{File: filepath.Join(t.TempDir(), "nope.sol")}, http.StatusNotFound},
		{"unknown type", nil, AuditRequest{File: path, Type: "cosmos"}, http.StatusBadRequest},
		{"unknown mode", nil, AuditRequest{File: path, Mode: "fast"}, http.StatusBadRequest},
		{"configuration error", fmt.Errorf("%w: OPENAI_API_KEY is not set", config.ErrConfiguration), AuditRequest{File: path}, http.StatusBadRequest},
		{"not implemented", fmt.Errorf("%w: MOVE", config.ErrNotImplemented), AuditRequest{File: path}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.factoryErr)
			resp := postAudit(t, f, tt.req)
			assert.Equal(t, tt.want, resp.StatusCode)

			var body errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body.Error)
			assert.Empty(t, f.store.GetAllAudits())
		})
	}
}

func TestCreateAudit_InvalidBody(t *testing.T) {
	f := newFixture(t, nil)
	resp, err := http.Post(f.srv.URL+"/api/audits", "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListAndGetAudits(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.store.StoreAudit(&storage.AuditRecord{FilePath: "a.sol", Report: models.NewFailedReport()})

	resp, err := http.Get(f.srv.URL + "/api/audits")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all []storage.AuditRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	require.Len(t, all, 1)
	assert.Equal(t, rec.ID, all[0].ID)

	one, err := http.Get(f.srv.URL + "/api/audits/" + rec.ID)
	require.NoError(t, err)
	defer one.Body.Close()
	assert.Equal(t, http.StatusOK, one.StatusCode)

	missing, err := http.Get(f.srv.URL + "/api/audits/unknown")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestDeleteAudit(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.store.StoreAudit(&storage.AuditRecord{FilePath: "a.sol", Report: models.NewFailedReport()})

	del := func() int {
		req, err := http.NewRequest(http.MethodDelete, f.srv.URL+"/api/audits/"+rec.ID, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusNoContent, del())
	assert.Equal(t, http.StatusNotFound, del())
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, nil)
	req, err := http.NewRequest(http.MethodPut, f.srv.URL+"/api/audits", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
