package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetdocs-service/internal/config"
	"fleetdocs-service/internal/notify"
	"fleetdocs-service/internal/reconcile"
	"fleetdocs-service/internal/repository"
	"fleetdocs-service/internal/schema"
	"fleetdocs-service/internal/service"
	"fleetdocs-service/internal/sheet"
)

const (
	masterCSV = "Matricula;Fecha de vencimiento;Conductor;Telefono\n1234ABC;01/01/2024;Ana;612345678\n5678DEF;;Luis;\n"
	weeklyCSV = "Matricula;Vencimiento\n1234abc ;15/06/2025\n0000NEW;01/07/2025\n"
)

func newTestRouter(t *testing.T, password string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zerolog.Nop()

	cfg := &config.Config{}
	cfg.HTTP.MaxUploadMB = 1
	cfg.Auth.AccessPassword = password
	cfg.Auth.JWTSecret = "test-secret"

	svc := service.NewReconcileService(
		schema.NewNormalizer(schema.ModeFuzzy, log),
		reconcile.NewEngine(reconcile.PolicyFirstMatch, log),
		notify.NewBuilder(notify.DefaultConfig(), log),
		repository.NewMemoryRunRepository(),
		time.UTC,
		log,
	)
	auth := NewAuthenticator(cfg.Auth.AccessPassword, cfg.Auth.JWTSecret, time.Hour)
	return NewRouter(cfg, NewHandler(svc, auth, cfg, log), auth, log)
}

func uploadRequest(t *testing.T, path string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type reconcileBody struct {
	Data struct {
		RunID     string                     `json:"run_id"`
		Date      string                     `json:"date"`
		Stats     reconcile.Stats            `json:"stats"`
		Unmatched []reconcile.UnmatchedPlate `json:"unmatched"`
		Report    struct {
			Payloads []struct {
				Plate         string  `json:"plate"`
				Tier          string  `json:"tier"`
				FormattedDate string  `json:"formatted_date"`
				Message       string  `json:"message"`
				Link          *string `json:"link"`
			} `json:"payloads"`
			Unknown []struct {
				Plate string `json:"plate"`
			} `json:"unknown"`
		} `json:"report"`
	} `json:"data"`
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, "")
	w := serve(r, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCreateReconciliation(t *testing.T) {
	r := newTestRouter(t, "")

	w := serve(r, uploadRequest(t, "/api/v1/reconciliations?now=2025-06-10", map[string]string{
		"master": masterCSV,
		"weekly": weeklyCSV,
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body reconcileBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "2025-06-10", body.Data.Date)
	assert.Equal(t, 2, body.Data.Stats.MasterRows)
	assert.Equal(t, 1, body.Data.Stats.DatesUpdated)
	require.Len(t, body.Data.Unmatched, 1)
	assert.Equal(t, "0000NEW", body.Data.Unmatched[0].Plate)

	require.Len(t, body.Data.Report.Payloads, 1)
	p := body.Data.Report.Payloads[0]
	assert.Equal(t, "1234ABC", p.Plate)
	assert.Equal(t, "DUE_SOON", p.Tier)
	assert.Equal(t, "15/06/2025", p.FormattedDate)
	require.NotNil(t, p.Link)
	assert.Contains(t, *p.Link, "https://wa.me/34612345678?text=")
	require.Len(t, body.Data.Report.Unknown, 1)
	assert.Equal(t, "5678DEF", body.Data.Report.Unknown[0].Plate)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/reconciliations/"+body.Data.RunID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"dates_updated":1`)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/reconciliations?limit=10", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), body.Data.RunID)
}

func TestCreateReconciliationErrors(t *testing.T) {
	r := newTestRouter(t, "")

	tests := []struct {
		name   string
		path   string
		files  map[string]string
		status int
		want   string
	}{
		{
			name:   "missing weekly file",
			path:   "/api/v1/reconciliations",
			files:  map[string]string{"master": masterCSV},
			status: http.StatusBadRequest,
			want:   "weekly file is required",
		},
		{
			name:   "weekly without date column",
			path:   "/api/v1/reconciliations",
			files:  map[string]string{"master": masterCSV, "weekly": "Matricula;Marca\n1234ABC;Volvo\n"},
			status: http.StatusUnprocessableEntity,
			want:   `"missing":["expirationDate"]`,
		},
		{
			name:   "header only master",
			path:   "/api/v1/reconciliations",
			files:  map[string]string{"master": "Matricula;Fecha de vencimiento\n", "weekly": weeklyCSV},
			status: http.StatusUnprocessableEntity,
			want:   "MASTER table unusable",
		},
		{
			name:   "bad now",
			path:   "/api/v1/reconciliations?now=10/06/2025",
			files:  map[string]string{"master": masterCSV, "weekly": weeklyCSV},
			status: http.StatusBadRequest,
			want:   "YYYY-MM-DD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, uploadRequest(t, tt.path, tt.files))
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestExportReconciliation(t *testing.T) {
	r := newTestRouter(t, "")

	w := serve(r, uploadRequest(t, "/api/v1/reconciliations/export?now=2025-06-10", map[string]string{
		"master": masterCSV,
		"weekly": weeklyCSV,
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="maestro_actualizado_2025-06-10.xlsx"`, w.Header().Get("Content-Disposition"))
	assert.NotEmpty(t, w.Header().Get("X-Run-ID"))

	table, err := sheet.Read("out.xlsx", w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []string{"Matricula", "Fecha de vencimiento", "Conductor", "Telefono"}, table.Headers)
	require.Len(t, table.Rows, 2)
	d, ok := schema.ParseDate(table.Cell(0, 1))
	require.True(t, ok)
	require.NotNil(t, d)
	assert.Equal(t, "2025-06-15", d.Format("2006-01-02"))
	assert.Equal(t, "", table.Cell(1, 1))
}

func TestGetRunErrors(t *testing.T) {
	r := newTestRouter(t, "")

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/reconciliations/nope", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/reconciliations/0b3c1f8e-6a8e-4f55-9b55-3d1e7a1f0c11", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthGate(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		r := newTestRouter(t, "")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", bytes.NewBufferString(`{"password":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		assert.Equal(t, http.StatusNotFound, serve(r, req).Code)
	})

	t.Run("enabled", func(t *testing.T) {
		r := newTestRouter(t, "flota2025")

		w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/reconciliations", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", bytes.NewBufferString(`{"password":"wrong"}`))
		req.Header.Set("Content-Type", "application/json")
		assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

		req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", bytes.NewBufferString(`{"password":"flota2025"}`))
		req.Header.Set("Content-Type", "application/json")
		w = serve(r, req)
		require.Equal(t, http.StatusCreated, w.Code)

		var body struct {
			Data struct {
				Token string `json:"token"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.NotEmpty(t, body.Data.Token)

		req = httptest.NewRequest(http.MethodGet, "/api/v1/reconciliations", nil)
		req.Header.Set("Authorization", "Bearer "+body.Data.Token)
		assert.Equal(t, http.StatusOK, serve(r, req).Code)

		req = httptest.NewRequest(http.MethodGet, "/api/v1/reconciliations", nil)
		req.Header.Set("Authorization", "Bearer "+body.Data.Token+"x")
		assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

		w = serve(r, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAuthenticatorExpiry(t *testing.T) {
	a := NewAuthenticator("pw", "secret", time.Minute)
	issued := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return issued }

	token, exp, err := a.Issue("pw")
	require.NoError(t, err)
	assert.Equal(t, issued.Add(time.Minute), exp)
	require.NoError(t, a.Verify(token))

	a.now = func() time.Time { return issued.Add(2 * time.Minute) }
	assert.ErrorIs(t, a.Verify(token), ErrInvalidToken)

	other := NewAuthenticator("pw", "other-secret", time.Minute)
	other.now = func() time.Time { return issued }
	assert.ErrorIs(t, other.Verify(token), ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	tok, ok := bearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	tok, ok = bearerToken("bearer  abc ")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	_, ok = bearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = bearerToken("Bearer ")
	assert.False(t, ok)
}
