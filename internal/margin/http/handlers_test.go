package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iva-margem/iva-margem/internal/session"
)

func newTestHandler(t *testing.T, pdf PDFRenderer) (*Handler, *Service) {
	t.Helper()
	svc, _, _ := newTestService(t)
	return NewHandler(testLogger(), svc, pdf), svc
}

func newTestRouter(t *testing.T, pdf PDFRenderer) (chi.Router, *Service) {
	t.Helper()
	h, svc := newTestHandler(t, pdf)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r, svc
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAssociateEndpoint(t *testing.T) {
	r, svc := newTestRouter(t, nil)
	sess := seedSession(t, svc)

	rec := doJSON(t, r, http.MethodPost, "/associate", map[string]any{
		"session_id": sess.ID,
		"sale_ids":   []string{"s1"},
		"cost_ids":   []string{"c1", "c2"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var out AssociateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 2, out.NewLinks)
}

func TestAssociateEndpointValidation(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	// Missing cost_ids fails struct validation.
	rec := doJSON(t, r, http.MethodPost, "/associate", map[string]any{
		"session_id": "x",
		"sale_ids":   []string{"s1"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	// Malformed JSON is a 400, not a 500.
	req := httptest.NewRequest(http.MethodPost, "/associate", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssociateEndpointUnknownSession(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	rec := doJSON(t, r, http.MethodPost, "/associate", map[string]any{
		"session_id": "missing",
		"sale_ids":   []string{"s1"},
		"cost_ids":   []string{"c1"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnlinkEndpoint(t *testing.T) {
	r, svc := newTestRouter(t, nil)
	sess := seedSession(t, svc)
	_, err := svc.Associate(context.Background(), sess.ID, []string{"s1"}, []string{"c1"})
	require.NoError(t, err)

	rec := doJSON(t, r, http.MethodPost, "/unlink", map[string]any{
		"session_id": sess.ID,
		"sale_id":    "s1",
		"cost_id":    "c1",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClearAssociationsEndpoint(t *testing.T) {
	r, svc := newTestRouter(t, nil)
	sess := seedSession(t, svc)
	_, err := svc.Associate(context.Background(), sess.ID, []string{"s1", "s2"}, []string{"c1"})
	require.NoError(t, err)

	rec := doJSON(t, r, http.MethodPost, "/clear-associations", map[string]any{
		"session_id": sess.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 2, out["links_removed"])
}

func TestAutoMatchEndpointDefaultThreshold(t *testing.T) {
	r, svc := newTestRouter(t, nil)
	sess := seedSession(t, svc)

	rec := doJSON(t, r, http.MethodPost, "/auto-match", map[string]any{
		"session_id": sess.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var out AutoMatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Matches, 1, "only s1/c1 clears the default threshold")
	assert.Equal(t, 1, out.NewLinks)
}

func TestAutoMatchEndpointThresholdBounds(t *testing.T) {
	r, svc := newTestRouter(t, nil)
	sess := seedSession(t, svc)

	rec := doJSON(t, r, http.MethodPost, "/auto-match", map[string]any{
		"session_id": sess.ID,
		"threshold":  150,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalculateEndpoint(t *testing.T) {
	r, svc := newTestRouter(t, nil)
	sess := seedSession(t, svc)

	rec := doJSON(t, r, http.MethodPost, "/calculate", map[string]any{
		"session_id": sess.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var out CalculationOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, sess.ID, out.SessionID)
	assert.Len(t, out.Results, 2)
	assert.Equal(t, 23.0, out.Results[0].VATRate, "default rate applies when omitted")
}

func TestCalculatePeriodEndpointRegionRate(t *testing.T) {
	r, svc := newTestRouter(t, nil)
	sess := seedSession(t, svc)

	rec := doJSON(t, r, http.MethodPost, "/calculate-period", map[string]any{
		"session_id": sess.ID,
		"year":       2025,
		"quarter":    2,
		"region":     "azores",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 18.0, out["vat_rate"])

	rec = doJSON(t, r, http.MethodPost, "/calculate-period", map[string]any{
		"session_id": sess.ID,
		"year":       2025,
		"quarter":    2,
		"region":     "mars",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionEndpoints(t *testing.T) {
	r, svc := newTestRouter(t, nil)
	sess := seedSession(t, svc)

	rec := doJSON(t, r, http.MethodGet, "/session/"+sess.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got session.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, sess.ID, got.ID)
	assert.Len(t, got.Sales, 2)

	rec = doJSON(t, r, http.MethodDelete, "/session/"+sess.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/session/"+sess.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadEFaturaEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	vendas, err := mw.CreateFormFile("vendas", "vendas.csv")
	require.NoError(t, err)
	_, err = vendas.Write([]byte(
		"Nº Documento / ATCUD;Tipo do Documento;Data Emissão;NIF Adquirente;Base Tributável;IVA;Total\n" +
			"FT 2025/1;Fatura;15/01/2025;123456789;1000,00;230,00;1230,00\n"))
	require.NoError(t, err)
	compras, err := mw.CreateFormFile("compras", "compras.csv")
	require.NoError(t, err)
	_, err = compras.Write([]byte(
		"Nº Fatura / ATCUD;Tipo;Data Emissão;Emitente;Base Tributável;IVA;Total\n" +
			"FC 1;Fatura;10/01/2025;501234567 - Hotel Mar;400,00;92,00;492,00\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-efatura", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var sess session.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.NotEmpty(t, sess.ID)
	assert.Len(t, sess.Sales, 1)
	assert.Len(t, sess.Costs, 1)
}

func TestUploadEFaturaMissingFile(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_, err := mw.CreateFormFile("vendas", "vendas.csv")
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-efatura", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportExcelEndpoint(t *testing.T) {
	r, svc := newTestRouter(t, nil)
	sess := seedSession(t, svc)

	rec := doJSON(t, r, http.MethodGet, "/export/excel/"+sess.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.NotZero(t, rec.Body.Len())

	rec = doJSON(t, r, http.MethodGet, "/export/excel/"+sess.ID+"?vat_rate=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubPDF struct {
	out []byte
	err error
}

func (s stubPDF) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	return s.out, s.err
}

func TestExportPDFEndpoint(t *testing.T) {
	r, svc := newTestRouter(t, stubPDF{out: []byte("%PDF-1.7 stub")})
	sess := seedSession(t, svc)

	rec := doJSON(t, r, http.MethodGet, "/export/pdf/"+sess.ID+"/2025/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "%PDF")
}

func TestExportPDFRendererFailure(t *testing.T) {
	r, svc := newTestRouter(t, stubPDF{err: errors.New("gotenberg down")})
	sess := seedSession(t, svc)

	rec := doJSON(t, r, http.MethodGet, "/export/pdf/"+sess.ID+"/2025/1", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestExportPDFWithoutRenderer(t *testing.T) {
	r, svc := newTestRouter(t, nil)
	sess := seedSession(t, svc)

	rec := doJSON(t, r, http.MethodGet, "/export/pdf/"+sess.ID+"/2025/1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
