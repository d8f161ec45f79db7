package galaxy

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ClusterEntry is a single entity in a galaxy: a canonical value plus the
// synonyms it may be referred to by.
type ClusterEntry struct {
	Value    string         `json:"value"`
	Galaxy   string         `json:"galaxy"`
	Synonyms []string       `json:"synonyms,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// Tag returns the fully-qualified cluster tag, e.g.
// misp-galaxy:mitre-intrusion-set="APT28 - G0007".
func (e *ClusterEntry) Tag() string {
	return FormatTag(e.Galaxy, e.Value)
}

// Galaxy is one loaded cluster catalog. Immutable once handed to a Resolver.
type Galaxy struct {
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name,omitempty"`
	Description string          `json:"description,omitempty"`
	Source      string          `json:"source,omitempty"`
	Version     int             `json:"version,omitempty"`
	Entries     []*ClusterEntry `json:"entries"`
}

// clusterFile mirrors the misp-galaxy cluster JSON schema. The tag namespace
// is the cluster "type" ("name" is the human-readable title).
type clusterFile struct {
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Source      string         `json:"source"`
	Version     int            `json:"version"`
	Values      []clusterValue `json:"values"`
}

type clusterValue struct {
	Value string         `json:"value"`
	UUID  string         `json:"uuid"`
	Meta  map[string]any `json:"meta"`
}

// LoadGalaxy loads one galaxy from a cluster file. A gob snapshot next to the
// JSON (same stem, .gob extension) takes priority when present.
func LoadGalaxy(path string) (*Galaxy, error) {
	if strings.HasSuffix(path, ".gob") {
		return loadSnapshot(path)
	}

	gobPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".gob"
	if _, err := os.Stat(gobPath); err == nil {
		return loadSnapshot(gobPath)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cluster file: %w", err)
	}
	defer f.Close()

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	g, err := ParseGalaxy(f, stem)
	if err != nil {
		return nil, fmt.Errorf("galaxy %s: %w", stem, err)
	}
	return g, nil
}

// ParseGalaxy decodes a misp-galaxy cluster JSON document. fallbackName is
// used as the tag namespace when the document carries no "type" field.
func ParseGalaxy(r io.Reader, fallbackName string) (*Galaxy, error) {
	var cf clusterFile
	if err := json.NewDecoder(r).Decode(&cf); err != nil {
		return nil, fmt.Errorf("decode cluster json: %w", err)
	}

	name := cf.Type
	if name == "" {
		name = fallbackName
	}
	if name == "" {
		return nil, fmt.Errorf("cluster has no type and no fallback name")
	}

	g := &Galaxy{
		Name:        name,
		DisplayName: cf.Name,
		Description: cf.Description,
		Source:      cf.Source,
		Version:     cf.Version,
		Entries:     make([]*ClusterEntry, 0, len(cf.Values)),
	}
	for _, v := range cf.Values {
		if v.Value == "" {
			continue
		}
		g.Entries = append(g.Entries, &ClusterEntry{
			Value:    v.Value,
			Galaxy:   name,
			Synonyms: synonymsFromMeta(v.Meta),
			Meta:     v.Meta,
		})
	}
	return g, nil
}

// synonymsFromMeta extracts meta.synonyms, tolerating the loosely-typed
// encodings found in the wild (array of strings, occasionally mixed).
func synonymsFromMeta(meta map[string]any) []string {
	raw, ok := meta["synonyms"]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var synonyms []string
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			synonyms = append(synonyms, s)
		}
	}
	return synonyms
}
