package manifest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/abflash-io/abflash/internal/flasher/store"
	"github.com/abflash-io/abflash/pkg/log"
)

// Load fetches and decodes the manifest object from the firmware store.
// An empty or unparseable manifest is fatal for session initialization.
func Load(ctx context.Context, st store.Store, key string) (*Manifest, error) {
	r, _, err := st.Fetch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest %q: %w", key, err)
	}
	defer r.Close()

	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %q: %w", key, err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %q: %w", key, err)
	}

	log.Info("Manifest loaded", "version", m.Version, "images", len(m.Images))
	return &m, nil
}
