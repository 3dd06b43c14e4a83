// Package domain contains the core business entities for PackVault.
package domain

// Manifest is the per-version JSON descriptor stored in the object store.
// It summarizes which digest is current for each category and, for reused
// categories, which version originally stored the bytes.
//
// The manifest is the only mutable document in the system. It is mutated
// once per upload or reuse call; writers must serialize per version.
type Manifest struct {
	// Name is the package name.
	Name string `json:"name"`

	// Version is the display version label.
	Version string `json:"version"`

	// Minecraft and Loader are pass-through compatibility metadata.
	Minecraft string `json:"minecraft"`
	Loader    string `json:"loader"`

	// Files maps category to the whole-archive digest currently stored
	// for that category at this version.
	Files map[string]string `json:"files"`

	// ReusedFrom maps category to the id of the version whose blobs this
	// version references. Absent for categories uploaded directly.
	ReusedFrom map[string]string `json:"reusedFrom,omitempty"`
}

// NewManifest synthesizes an empty manifest from version metadata.
func NewManifest(pkg *Package, version *PackageVersion) *Manifest {
	return &Manifest{
		Name:      pkg.Name,
		Version:   version.Label,
		Minecraft: version.Minecraft,
		Loader:    version.Loader,
		Files:     make(map[string]string),
	}
}

// SetCategory records the stored digest for a category, replacing any
// previous entry. A non-empty reusedFrom marks the category as referencing
// blobs stored under another version; an empty one clears the mark.
func (m *Manifest) SetCategory(category Category, digest, reusedFrom string) {
	if m.Files == nil {
		m.Files = make(map[string]string)
	}
	m.Files[category.String()] = digest

	if reusedFrom != "" {
		if m.ReusedFrom == nil {
			m.ReusedFrom = make(map[string]string)
		}
		m.ReusedFrom[category.String()] = reusedFrom
		return
	}
	if m.ReusedFrom != nil {
		delete(m.ReusedFrom, category.String())
		if len(m.ReusedFrom) == 0 {
			m.ReusedFrom = nil
		}
	}
}

// StorageVersion returns the id of the version under whose key prefix the
// category's blobs actually live: the reuse origin if the category was
// reused, otherwise the version the manifest belongs to.
func (m *Manifest) StorageVersion(category Category, ownVersionID string) string {
	if src, ok := m.ReusedFrom[category.String()]; ok && src != "" {
		return src
	}
	return ownVersionID
}
