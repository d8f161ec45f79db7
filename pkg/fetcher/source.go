package fetcher

// Source describes one upstream cluster file of the misp-galaxy repository.
type Source struct {
	GalaxyName  string
	Description string
	URL         string
	License     string
}

const defaultClusterBaseURL = "https://raw.githubusercontent.com/MISP/misp-galaxy/main/clusters"

// DefaultSources lists the galaxies the resolver is tuned for: the actor,
// malware and tool catalogs plus Malpedia family names.
func DefaultSources() []Source {
	names := []struct {
		name, desc string
	}{
		{"threat-actor", "MISP threat actor catalog"},
		{"tool", "MISP tool catalog"},
		{"mitre-intrusion-set", "MITRE ATT&CK intrusion sets"},
		{"mitre-malware", "MITRE ATT&CK malware"},
		{"mitre-tool", "MITRE ATT&CK tools"},
		{"malpedia", "Malpedia malware family names"},
	}
	sources := make([]Source, 0, len(names))
	for _, n := range names {
		sources = append(sources, Source{
			GalaxyName:  n.name,
			Description: n.desc,
			URL:         defaultClusterBaseURL + "/" + n.name + ".json",
			License:     "CC0",
		})
	}
	return sources
}
