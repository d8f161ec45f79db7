package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/galaxy-registry/pkg/galaxy"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	r := galaxy.NewResolver("")
	r.BuildIndex(&galaxy.Galaxy{
		Name:        "mitre-intrusion-set",
		DisplayName: "Intrusion Set",
		Version:     37,
		Entries: []*galaxy.ClusterEntry{
			{Value: "APT28 - G0007", Galaxy: "mitre-intrusion-set", Synonyms: []string{"Sednit", "APT28"}},
		},
	})
	r.BuildIndex(&galaxy.Galaxy{
		Name: "malpedia",
		Entries: []*galaxy.ClusterEntry{
			{Value: "Emotet", Galaxy: "malpedia", Synonyms: []string{"Feodo"}},
		},
	})
	return NewRouter(r)
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleQueryGalaxy_Synonym(t *testing.T) {
	router := testRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/v1/galaxies/mitre-intrusion-set/resolve/sednit", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Query      string   `json:"query"`
		Normalized string   `json:"normalized"`
		Tags       []string `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "sednit", resp.Query)
	require.Equal(t, "sednit", resp.Normalized)
	require.Equal(t, []string{`misp-galaxy:mitre-intrusion-set="APT28 - G0007"`}, resp.Tags)
}

func TestHandleQueryGalaxy_NoMatchIsEmptyNotError(t *testing.T) {
	router := testRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/v1/galaxies/malpedia/resolve/doesnotexist", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tags []string `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Empty(t, resp.Tags)
}

func TestHandleQueryGalaxy_UnknownGalaxyIs404(t *testing.T) {
	router := testRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/v1/galaxies/nonexistent-galaxy/resolve/anything", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp["error"], "unknown galaxy")
}

func TestHandleResolve_AcrossGalaxies(t *testing.T) {
	router := testRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/v1/resolve/apt%2028", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp galaxy.ResolveResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "apt28", resp.Normalized)
	require.Len(t, resp.Matches, 1)
	require.Equal(t, "mitre-intrusion-set", resp.Matches[0].Galaxy)
}

func TestHandleResolve_GalaxyFilter(t *testing.T) {
	router := testRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/v1/resolve/sednit?galaxies=malpedia", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp galaxy.ResolveResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Empty(t, resp.Matches)
}

func TestHandleCompound(t *testing.T) {
	router := testRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/v1/resolve/compound",
		`{"label": "sednit, feodo"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []*galaxy.ResolveResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	require.Equal(t, "sednit", resp.Results[0].Query)
	require.Equal(t, "feodo", resp.Results[1].Query)
}

func TestHandleCompound_EmptyLabel(t *testing.T) {
	router := testRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/v1/resolve/compound", `{"label": ""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCompound_InvalidJSON(t *testing.T) {
	router := testRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/v1/resolve/compound", `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCompound_GetNotAllowed(t *testing.T) {
	router := testRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/v1/resolve/compound", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleListGalaxies(t *testing.T) {
	router := testRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/v1/galaxies", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Galaxies []galaxy.GalaxyInfo `json:"galaxies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Galaxies, 2)
	require.Equal(t, "malpedia", resp.Galaxies[0].Name)
	require.Equal(t, "mitre-intrusion-set", resp.Galaxies[1].Name)
	require.Equal(t, 37, resp.Galaxies[1].Version)
}

func TestHandleHealth(t *testing.T) {
	router := testRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, 2, resp.Galaxies)
	require.Equal(t, 2, resp.TotalEntries)
}

func TestCORSPreflight(t *testing.T) {
	router := testRouter(t)

	rec := doRequest(t, router, http.MethodOptions, "/v1/galaxies", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
