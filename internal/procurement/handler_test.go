package procurement

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/approvisionnement/internal/platform/httpx"
)

func newTestRouter(t *testing.T, seed ...Record) http.Handler {
	t.Helper()
	svc, _ := newTestService(t, seed...)
	r := chi.NewRouter()
	r.Route("/approvisionnements", NewHandler(nil, svc).MountRoutes)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, &buf))
	return rr
}

func TestHandlerCreateAndFetch(t *testing.T) {
	h := newTestRouter(t)

	rr := doJSON(t, h, http.MethodPost, "/approvisionnements", twoLineDraft())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.Equal(t, 25000.0, created.TotalAmount)
	require.Equal(t, StatusPending, created.Status)

	rr = doJSON(t, h, http.MethodGet, "/approvisionnements/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, http.MethodPost, "/approvisionnements/"+created.ID+"/reception", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"statut":"Reçu"`)

	rr = doJSON(t, h, http.MethodGet, "/approvisionnements/references/"+created.Reference, nil)
	require.JSONEq(t, `{"exists":true}`, rr.Body.String())

	rr = doJSON(t, h, http.MethodGet, "/approvisionnements/next-reference", nil)
	require.JSONEq(t, `{"reference":"APP-202401-002"}`, rr.Body.String())

	rr = doJSON(t, h, http.MethodDelete, "/approvisionnements/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	rr = doJSON(t, h, http.MethodGet, "/approvisionnements/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerValidationProblem(t *testing.T) {
	h := newTestRouter(t)

	rr := doJSON(t, h, http.MethodPost, "/approvisionnements", Draft{Date: "2024-01-15"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	require.Equal(t, "required", problem.Errors["fournisseurId"])
	require.Equal(t, "at least one line", problem.Errors["articles"])

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/approvisionnements", strings.NewReader("{")))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerListAndExport(t *testing.T) {
	h := newTestRouter(t, seedTwelve()...)

	rr := doJSON(t, h, http.MethodGet, "/approvisionnements?page=3", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var res ListResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.Len(t, res.Records, 2)
	require.Equal(t, 3, res.Pagination.Page)
	require.Equal(t, "11-12 sur 12", res.Info)

	rr = doJSON(t, h, http.MethodGet, "/approvisionnements/export?fournisseurId=3", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 5)
	require.Equal(t, "APP-202401-003,2024-01-03,Tissus Premium,3000,En attente", lines[1])

	rr = doJSON(t, h, http.MethodGet, "/approvisionnements/export?format=pdf", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/approvisionnements/stats?dateDebut=2024-01-11", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var st Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	require.Equal(t, 2, st.Count)
	require.Equal(t, 23000.0, st.TotalAmount)
}
