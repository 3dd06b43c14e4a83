package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/packvault/internal/domain"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		previous map[string]FileRef
		current  map[string]FileRef
		want     DiffResult
	}{
		{
			name:     "empty sets",
			previous: map[string]FileRef{},
			current:  map[string]FileRef{},
			want:     DiffResult{},
		},
		{
			name:     "all added",
			previous: map[string]FileRef{},
			current: map[string]FileRef{
				"mods/a.jar": {Digest: "h1", Size: 10},
				"mods/b.jar": {Digest: "h2", Size: 20},
			},
			want: DiffResult{Added: 2},
		},
		{
			name: "all removed",
			previous: map[string]FileRef{
				"mods/a.jar": {Digest: "h1", Size: 10},
			},
			current: map[string]FileRef{},
			want:    DiffResult{Removed: 1},
		},
		{
			name: "mixed changes",
			previous: map[string]FileRef{
				"mods/a.jar": {Digest: "h1", Size: 10},
				"mods/b.jar": {Digest: "h2", Size: 20},
				"mods/c.jar": {Digest: "h3", Size: 30},
			},
			current: map[string]FileRef{
				"mods/a.jar": {Digest: "h1", Size: 10},  // unchanged
				"mods/b.jar": {Digest: "h2x", Size: 21}, // modified
				"mods/d.jar": {Digest: "h4", Size: 40},  // added
			},
			want: DiffResult{Added: 1, Removed: 1, Modified: 1},
		},
		{
			name: "same path same digest is unchanged",
			previous: map[string]FileRef{
				"configs/common.toml": {Digest: "h1", Size: 5},
			},
			current: map[string]FileRef{
				"configs/common.toml": {Digest: "h1", Size: 5},
			},
			want: DiffResult{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Diff(tt.previous, tt.current)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiffDigestCollision(t *testing.T) {
	previous := map[string]FileRef{
		"mods/a.jar": {Digest: "h1", Size: 10},
	}
	current := map[string]FileRef{
		"mods/a.jar": {Digest: "h1", Size: 11},
	}

	_, err := Diff(previous, current)
	assert.ErrorIs(t, err, domain.ErrDigestCollision)
}
