// CLAUDE:SUMMARY Gob snapshot serialization of parsed galaxies for fast startup without re-decoding cluster JSON.
package galaxy

import (
	"encoding/gob"
	"fmt"
	"os"
)

func init() {
	// meta values decoded from JSON end up as these dynamic types.
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// loadSnapshot deserializes a galaxy from a gob-encoded file.
func loadSnapshot(path string) (*Galaxy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	var g Galaxy
	if err := gob.NewDecoder(f).Decode(&g); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &g, nil
}

// SaveSnapshot serializes a galaxy to a gob-encoded file at path.
func SaveSnapshot(g *Galaxy, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(g); err != nil {
		return fmt.Errorf("encode snapshot %s: %w", path, err)
	}
	return nil
}
