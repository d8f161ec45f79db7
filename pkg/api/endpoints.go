package api

import (
	"context"
	"fmt"
	"sort"

	"github.com/hazyhaar/galaxy-registry/pkg/galaxy"
	"github.com/hazyhaar/galaxy-registry/pkg/kit"
)

// Shared request/response types used by both HTTP and MCP transports.

type resolveReq struct {
	Query string
	Opts  *galaxy.ResolveOptions
}

type compoundReq struct {
	Label string
	Opts  *galaxy.ResolveOptions
}

type queryGalaxyReq struct {
	Galaxy  string
	Query   string
	Partial bool
}

type queryGalaxyResponse struct {
	Query      string   `json:"query"`
	Normalized string   `json:"normalized"`
	Tags       []string `json:"tags"`
}

type compoundResponse struct {
	Results []*galaxy.ResolveResult `json:"results"`
}

type galaxiesResponse struct {
	Galaxies []galaxy.GalaxyInfo `json:"galaxies"`
}

// Endpoints backed by the resolver.

func resolveEndpoint(r *galaxy.Resolver) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*resolveReq)
		return r.Resolve(req.Query, req.Opts), nil
	}
}

func resolveCompoundEndpoint(r *galaxy.Resolver) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*compoundReq)
		if req.Label == "" {
			return nil, fmt.Errorf("label is empty")
		}
		results := r.ResolveCompound(req.Label, req.Opts)
		if results == nil {
			results = []*galaxy.ResolveResult{}
		}
		return compoundResponse{Results: results}, nil
	}
}

// queryGalaxyEndpoint is the strict per-galaxy lookup: unknown galaxy is an
// error, no match is an empty tag set.
func queryGalaxyEndpoint(r *galaxy.Resolver) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*queryGalaxyReq)
		entries, err := r.QueryEntries(req.Galaxy, req.Query, req.Partial)
		if err != nil {
			return nil, err
		}
		tags := make([]string, 0, len(entries))
		seen := make(map[string]struct{}, len(entries))
		for _, e := range entries {
			tag := e.Tag()
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		return queryGalaxyResponse{
			Query:      req.Query,
			Normalized: r.NormalizeLabel(req.Query),
			Tags:       tags,
		}, nil
	}
}

func listGalaxiesEndpoint(r *galaxy.Resolver) kit.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		return galaxiesResponse{Galaxies: r.Galaxies()}, nil
	}
}
