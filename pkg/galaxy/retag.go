// CLAUDE:SUMMARY Cluster tag helpers and stale-tag detection (synonym-based and suffix-based renames).
package galaxy

import (
	"fmt"
	"sort"
	"strings"
)

// TagPrefix returns the tag namespace prefix for a galaxy, without the value
// part, e.g. `misp-galaxy:mitre-intrusion-set`.
func TagPrefix(galaxyName string) string {
	return "misp-galaxy:" + galaxyName
}

// FormatTag builds a fully-qualified cluster tag.
func FormatTag(galaxyName, value string) string {
	return fmt.Sprintf("%s=\"%s\"", TagPrefix(galaxyName), value)
}

// GalaxyNamesFromTags extracts the sorted set of galaxy names referenced by
// misp-galaxy tags; anything else is ignored.
func GalaxyNamesFromTags(tags []string) []string {
	seen := make(map[string]struct{})
	for _, tag := range tags {
		prefix, _, found := strings.Cut(tag, "=")
		if !found {
			continue
		}
		category, name, found := strings.Cut(prefix, ":")
		if !found || category != "misp-galaxy" || name == "" {
			continue
		}
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// suffixIdentityGalaxies lists galaxies whose clusters keep a stable
// identifier in the label suffix across renames (e.g. a MITRE technique id),
// so a tag sharing the suffix of a differently-named current tag is stale.
var suffixIdentityGalaxies = map[string]struct{}{
	"mitre-attack-pattern": {},
}

// TagUpdate proposes replacing a stale tag with its current form.
type TagUpdate struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// StaleTags compares existing tags against the current state of one indexed
// galaxy and returns the replacements to apply. A tag is stale when it names
// a synonym of a current cluster value, or, for suffix-identity galaxies,
// when it shares the " - " suffix of a renamed value. Existing tags outside
// the galaxy's prefix are ignored.
func (r *Resolver) StaleTags(galaxyName string, existing []string) ([]TagUpdate, error) {
	r.mu.RLock()
	idx, ok := r.indexes[galaxyName]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGalaxy, galaxyName)
	}

	prefix := TagPrefix(galaxyName) + "="
	_, suffixBased := suffixIdentityGalaxies[galaxyName]

	// Current tag per entry plus the synonym tags it supersedes.
	type currentCluster struct {
		tag      string
		synonyms map[string]struct{}
	}
	current := make([]currentCluster, 0, len(idx.galaxy.Entries))
	currentTags := make(map[string]struct{}, len(idx.galaxy.Entries))
	for _, e := range idx.galaxy.Entries {
		c := currentCluster{
			tag:      e.Tag(),
			synonyms: make(map[string]struct{}, len(e.Synonyms)),
		}
		for _, s := range e.Synonyms {
			c.synonyms[FormatTag(galaxyName, s)] = struct{}{}
		}
		current = append(current, c)
		currentTags[c.tag] = struct{}{}
	}

	sorted := make([]string, len(existing))
	copy(sorted, existing)
	sort.Strings(sorted)

	var updates []TagUpdate
	for _, tag := range sorted {
		if !strings.HasPrefix(tag, prefix) {
			continue
		}
		if _, ok := currentTags[tag]; ok {
			continue // still current, never stale
		}
		for _, c := range current {
			if _, stale := c.synonyms[tag]; stale {
				updates = append(updates, TagUpdate{Old: tag, New: c.tag})
				break
			}
			if suffixBased && tagSuffix(tag) == tagSuffix(c.tag) {
				updates = append(updates, TagUpdate{Old: tag, New: c.tag})
				break
			}
		}
	}
	return updates, nil
}

// tagSuffix returns the last " - " separated segment of a tag's value.
func tagSuffix(tag string) string {
	parts := strings.Split(tag, " - ")
	return parts[len(parts)-1]
}
