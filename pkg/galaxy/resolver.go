package galaxy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownGalaxy is returned by Query when no index was ever built for the
// requested galaxy name. A known galaxy with no match returns an empty result
// instead.
var ErrUnknownGalaxy = errors.New("unknown galaxy")

// DefaultStoplist holds generic terms that never identify a single actor or
// family; queries collapsing to one of these resolve to nothing.
var DefaultStoplist = []string{
	"encrypted",
	"malware",
	"phishing",
	"ransomware",
	"threat",
	"trojan",
	"backdoor",
}

// galaxyIndex is the normalized-key lookup table for one galaxy.
// Built once, then read-only; rebuilds swap in a fresh instance.
type galaxyIndex struct {
	galaxy *Galaxy
	byKey  map[string][]*ClusterEntry
}

// Resolver holds the indexed galaxies and answers synonym queries.
type Resolver struct {
	mu          sync.RWMutex
	indexes     map[string]*galaxyIndex
	galaxiesDir string
	normalize   Normalizer
	stopTerms   []string
	stoplist    map[string]struct{}
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithNormalizer overrides the default compact normalizer.
func WithNormalizer(n Normalizer) Option {
	return func(r *Resolver) { r.normalize = n }
}

// WithStoplist replaces the default stoplist. Terms are compared after
// normalization; pass an empty slice to disable stopping entirely.
func WithStoplist(terms []string) Option {
	return func(r *Resolver) { r.stopTerms = terms }
}

// NewResolver creates an empty resolver for the given galaxies directory.
// The directory may be empty; galaxies can also be indexed directly via
// BuildIndex.
func NewResolver(galaxiesDir string, opts ...Option) *Resolver {
	r := &Resolver{
		indexes:     make(map[string]*galaxyIndex),
		galaxiesDir: galaxiesDir,
		normalize:   NormalizeCompact,
		stopTerms:   DefaultStoplist,
	}
	for _, opt := range opts {
		opt(r)
	}
	// Normalize the stoplist only after all options ran, so a custom
	// normalizer applies regardless of option order.
	r.stoplist = make(map[string]struct{}, len(r.stopTerms))
	for _, t := range r.stopTerms {
		r.stoplist[r.normalize(t)] = struct{}{}
	}
	return r
}

// Load scans the galaxies directory and indexes every cluster file.
// The whole index set is replaced atomically; a failed load leaves the
// previous indexes untouched.
func (r *Resolver) Load() error {
	entries, err := os.ReadDir(r.galaxiesDir)
	if err != nil {
		return fmt.Errorf("read galaxies dir %s: %w", r.galaxiesDir, err)
	}

	newIndexes := make(map[string]*galaxyIndex)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch filepath.Ext(name) {
		case ".json":
			// LoadGalaxy prefers the .gob snapshot when one exists.
		case ".gob":
			// Snapshot without its JSON: load it directly.
			stem := strings.TrimSuffix(name, ".gob")
			if _, err := os.Stat(filepath.Join(r.galaxiesDir, stem+".json")); err == nil {
				continue
			}
		default:
			continue
		}
		g, err := LoadGalaxy(filepath.Join(r.galaxiesDir, name))
		if err != nil {
			return fmt.Errorf("load galaxy %s: %w", name, err)
		}
		newIndexes[g.Name] = r.buildIndex(g)
	}

	r.mu.Lock()
	r.indexes = newIndexes
	r.mu.Unlock()
	return nil
}

// Reload re-reads all galaxies from disk (hot reload).
func (r *Resolver) Reload() error {
	return r.Load()
}

// BuildIndex indexes one galaxy, replacing any previous index under the same
// galaxy name. Indexing is total: a galaxy with zero entries yields a valid
// empty index.
func (r *Resolver) BuildIndex(g *Galaxy) {
	idx := r.buildIndex(g)
	r.mu.Lock()
	r.indexes[g.Name] = idx
	r.mu.Unlock()
}

// buildIndex computes the normalized-key table. Each entry is indexed under
// its canonical value and every synonym; distinct entries sharing a key are
// all kept (ambiguity is the caller's problem, not ours to hide).
func (r *Resolver) buildIndex(g *Galaxy) *galaxyIndex {
	idx := &galaxyIndex{
		galaxy: g,
		byKey:  make(map[string][]*ClusterEntry, len(g.Entries)),
	}
	for _, e := range g.Entries {
		keys := make(map[string]struct{}, len(e.Synonyms)+1)
		keys[r.normalize(e.Value)] = struct{}{}
		for _, s := range e.Synonyms {
			keys[r.normalize(s)] = struct{}{}
		}
		for k := range keys {
			idx.byKey[k] = append(idx.byKey[k], e)
		}
	}
	return idx
}

// Query resolves a raw query within one galaxy and returns the sorted set of
// cluster tags whose value or synonyms collapse to the same normalized key.
// No match is an empty result; only a galaxy that was never indexed is an
// error.
func (r *Resolver) Query(galaxyName, raw string) ([]string, error) {
	entries, err := r.QueryEntries(galaxyName, raw, false)
	if err != nil {
		return nil, err
	}
	return entryTags(entries), nil
}

// QueryEntries is Query returning the matched entries themselves. With
// includePartial, a missed exact lookup falls back to a substring scan over
// the galaxy's keys (deterministic: keys visited in sorted order).
func (r *Resolver) QueryEntries(galaxyName, raw string, includePartial bool) ([]*ClusterEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.indexes[galaxyName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGalaxy, galaxyName)
	}

	key := r.normalize(raw)
	if _, stopped := r.stoplist[key]; stopped {
		return nil, nil
	}

	if entries, ok := idx.byKey[key]; ok {
		out := make([]*ClusterEntry, len(entries))
		copy(out, entries)
		return out, nil
	}
	if includePartial && key != "" {
		return partialScan(idx, key), nil
	}
	return nil, nil
}

// partialScan collects entries whose keys contain key as a substring.
func partialScan(idx *galaxyIndex, key string) []*ClusterEntry {
	var hitKeys []string
	for k := range idx.byKey {
		if strings.Contains(k, key) {
			hitKeys = append(hitKeys, k)
		}
	}
	sort.Strings(hitKeys)

	var out []*ClusterEntry
	seen := make(map[*ClusterEntry]struct{})
	for _, k := range hitKeys {
		for _, e := range idx.byKey[k] {
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

// ResolveOptions are optional filters for multi-galaxy resolution.
type ResolveOptions struct {
	Galaxies       []string // restrict to these galaxy names (all when empty)
	IncludePartial bool     // fall back to substring matching
	Separators     string   // compound split runes (default " ,")
}

// Match is a single cluster hit for a resolved query.
type Match struct {
	Galaxy string `json:"galaxy"`
	Value  string `json:"value"`
	Tag    string `json:"tag"`
}

// ResolveResult is the response for one resolved query.
type ResolveResult struct {
	Query      string  `json:"query"`
	Normalized string  `json:"normalized"`
	Matches    []Match `json:"matches"`
}

// Resolve looks a query up across all (or filtered) galaxies.
// Galaxies are visited in sorted name order for deterministic results;
// names in the filter that were never indexed are skipped.
func (r *Resolver) Resolve(raw string, opts *ResolveOptions) *ResolveResult {
	result := &ResolveResult{
		Query:      raw,
		Normalized: r.normalize(raw),
		Matches:    []Match{},
	}

	includePartial := false
	if opts != nil {
		includePartial = opts.IncludePartial
	}

	for _, name := range r.galaxyNames(opts) {
		entries, err := r.QueryEntries(name, raw, includePartial)
		if err != nil {
			continue
		}
		for _, e := range entries {
			result.Matches = append(result.Matches, Match{
				Galaxy: e.Galaxy,
				Value:  e.Value,
				Tag:    e.Tag(),
			})
		}
	}
	return result
}

// ResolveCompound decomposes a label on separator runes and resolves each
// fragment, keeping only fragments that matched something. Useful for inputs
// like "sednit, sofacy" coming out of sandbox reports.
func (r *Resolver) ResolveCompound(raw string, opts *ResolveOptions) []*ResolveResult {
	separators := " ,"
	if opts != nil && opts.Separators != "" {
		separators = opts.Separators
	}

	fragments := strings.FieldsFunc(raw, func(c rune) bool {
		return strings.ContainsRune(separators, c)
	})

	var results []*ResolveResult
	for _, fragment := range fragments {
		res := r.Resolve(fragment, opts)
		if len(res.Matches) == 0 {
			continue
		}
		results = append(results, res)
	}
	return results
}

// galaxyNames returns the sorted indexed galaxy names, honoring the filter.
func (r *Resolver) galaxyNames(opts *ResolveOptions) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.indexes))
	for name := range r.indexes {
		if opts != nil && len(opts.Galaxies) > 0 && !contains(opts.Galaxies, name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GalaxyInfo is the public metadata for one indexed galaxy.
type GalaxyInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source,omitempty"`
	Version     int    `json:"version,omitempty"`
	Entries     int    `json:"entries"`
}

// Galaxies returns metadata for all indexed galaxies, sorted by name.
func (r *Resolver) Galaxies() []GalaxyInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]GalaxyInfo, 0, len(r.indexes))
	for _, idx := range r.indexes {
		g := idx.galaxy
		infos = append(infos, GalaxyInfo{
			Name:        g.Name,
			DisplayName: g.DisplayName,
			Description: g.Description,
			Source:      g.Source,
			Version:     g.Version,
			Entries:     len(g.Entries),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// GalaxyCount returns the number of indexed galaxies.
func (r *Resolver) GalaxyCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.indexes)
}

// TotalEntries returns the total number of cluster entries across galaxies.
func (r *Resolver) TotalEntries() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, idx := range r.indexes {
		total += len(idx.galaxy.Entries)
	}
	return total
}

// NormalizeLabel applies this resolver's normalizer to a label.
func (r *Resolver) NormalizeLabel(label string) string {
	return r.normalize(label)
}

// entryTags converts entries to a sorted, deduplicated tag set.
func entryTags(entries []*ClusterEntry) []string {
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
	return tags
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
