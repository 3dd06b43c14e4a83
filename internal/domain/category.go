// Package domain contains the core business entities for PackVault.
package domain

// Category is one of the fixed partitions of a package's contents.
// Each category is versioned and stored independently.
type Category string

const (
	// CategoryMods is the bulk-content partition (the large one).
	CategoryMods Category = "mods"

	// CategoryConfigs is the small-configuration partition.
	CategoryConfigs Category = "configs"

	// CategoryResourcePacks is the resource partition.
	CategoryResourcePacks Category = "resourcepacks"
)

// Categories lists every known category.
var Categories = []Category{CategoryMods, CategoryConfigs, CategoryResourcePacks}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryMods, CategoryConfigs, CategoryResourcePacks:
		return true
	}
	return false
}

// ReuseAllowed reports whether the category may be populated by the reuse
// shortcut instead of a fresh upload. Bulk content is expected to change
// between releases and must always be uploaded.
func (c Category) ReuseAllowed() bool {
	switch c {
	case CategoryConfigs, CategoryResourcePacks:
		return true
	}
	return false
}

func (c Category) String() string {
	return string(c)
}
