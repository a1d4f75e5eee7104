// Package manifest defines the ordered firmware image list a flash session
// operates on.
package manifest

import (
	"errors"
	"fmt"
)

// ImageDescriptor names one firmware image. Order within the manifest is
// significant: it drives partition targeting and progress weighting.
type ImageDescriptor struct {
	// Name is the base partition name; the session appends the slot
	// suffix when flashing.
	Name string `json:"name"`

	// Object is the store key of the packed image archive.
	Object string `json:"object"`

	// Size of the unpacked image in bytes.
	Size int64 `json:"size"`

	// SHA256 is the hex digest of the unpacked image.
	SHA256 string `json:"sha256"`
}

// Manifest is the ordered, non-empty image list of one firmware release.
type Manifest struct {
	Version string            `json:"version"`
	Images  []ImageDescriptor `json:"images"`
}

// Validate rejects manifests the session cannot safely act on.
func (m *Manifest) Validate() error {
	if len(m.Images) == 0 {
		return errors.New("manifest contains no images")
	}

	seen := make(map[string]struct{}, len(m.Images))
	for i, img := range m.Images {
		if img.Name == "" {
			return fmt.Errorf("image %d has no name", i)
		}
		if img.Object == "" {
			return fmt.Errorf("image %q has no object key", img.Name)
		}
		if _, dup := seen[img.Name]; dup {
			return fmt.Errorf("duplicate image name %q", img.Name)
		}
		seen[img.Name] = struct{}{}
	}
	return nil
}
