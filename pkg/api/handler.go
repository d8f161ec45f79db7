package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hazyhaar/galaxy-registry/pkg/galaxy"
	"github.com/hazyhaar/galaxy-registry/pkg/kit"
)

// NewRouter returns an http.Handler with all resolver API routes.
func NewRouter(r *galaxy.Resolver) http.Handler {
	mux := http.NewServeMux()
	h := &handler{
		resolve:         instrument("resolve", resolveEndpoint(r)),
		resolveCompound: instrument("resolve_compound", resolveCompoundEndpoint(r)),
		queryGalaxy:     instrument("query_galaxy", queryGalaxyEndpoint(r)),
		listGalaxies:    instrument("list_galaxies", listGalaxiesEndpoint(r)),
		resolver:        r,
	}

	mux.HandleFunc("GET /v1/galaxies", h.handleListGalaxies)
	mux.HandleFunc("GET /v1/galaxies/{galaxy}/resolve/{query}", h.handleQueryGalaxy)
	mux.HandleFunc("GET /v1/resolve/{query}", h.handleResolve)
	mux.HandleFunc("GET /v1/resolve/compound", methodNotAllowed) // prevent GET on compound
	mux.HandleFunc("POST /v1/resolve/compound", h.handleCompound)
	mux.HandleFunc("GET /v1/health", h.handleHealth)

	return cors(mux)
}

type handler struct {
	resolve         kit.Endpoint
	resolveCompound kit.Endpoint
	queryGalaxy     kit.Endpoint
	listGalaxies    kit.Endpoint
	resolver        *galaxy.Resolver
}

// --- resolve across galaxies ---

func (h *handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	query := r.PathValue("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}

	resp, err := h.resolve(r.Context(), &resolveReq{
		Query: query,
		Opts:  parseOpts(r),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- strict per-galaxy query ---

func (h *handler) handleQueryGalaxy(w http.ResponseWriter, r *http.Request) {
	req := &queryGalaxyReq{
		Galaxy:  r.PathValue("galaxy"),
		Query:   r.PathValue("query"),
		Partial: r.URL.Query().Get("partial") == "1",
	}
	if req.Galaxy == "" || req.Query == "" {
		writeError(w, http.StatusBadRequest, "missing galaxy or query")
		return
	}

	resp, err := h.queryGalaxy(r.Context(), req)
	if err != nil {
		// Unknown galaxy is the caller naming a catalog we never indexed;
		// an empty tag set is NOT an error.
		if errors.Is(err, galaxy.ErrUnknownGalaxy) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- compound resolve ---

type httpCompoundRequest struct {
	Label      string   `json:"label"`
	Galaxies   []string `json:"galaxies,omitempty"`
	Partial    bool     `json:"partial,omitempty"`
	Separators string   `json:"separators,omitempty"`
}

func (h *handler) handleCompound(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024) // 64 KiB max
	var req httpCompoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := h.resolveCompound(r.Context(), &compoundReq{
		Label: req.Label,
		Opts: &galaxy.ResolveOptions{
			Galaxies:       req.Galaxies,
			IncludePartial: req.Partial,
			Separators:     req.Separators,
		},
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- list galaxies ---

func (h *handler) handleListGalaxies(w http.ResponseWriter, r *http.Request) {
	resp, err := h.listGalaxies(r.Context(), nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- health ---

type healthResponse struct {
	Status       string `json:"status"`
	Galaxies     int    `json:"galaxies"`
	TotalEntries int    `json:"total_entries"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		Galaxies:     h.resolver.GalaxyCount(),
		TotalEntries: h.resolver.TotalEntries(),
	})
}

// --- helpers ---

func parseOpts(r *http.Request) *galaxy.ResolveOptions {
	opts := &galaxy.ResolveOptions{}
	if v := r.URL.Query().Get("galaxies"); v != "" {
		opts.Galaxies = strings.Split(v, ",")
	}
	if r.URL.Query().Get("partial") == "1" {
		opts.IncludePartial = true
	}
	return opts
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// cors is a simple CORS middleware for browser-based clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
