// Package presets holds named image-size presets for `mkfs --preset`, so a
// caller doesn't need to spell out a raw byte count for a common image
// size. The table is loaded once from an embedded CSV at import time.
package presets

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
)

// Preset describes one named image geometry: target size, host block
// size, and inode ratio, the three arguments core.Init takes.
type Preset struct {
	Slug       string `csv:"slug"`
	Name       string `csv:"name"`
	SizeBytes  int64  `csv:"size_bytes"`
	BlockSize  uint32 `csv:"block_size"`
	InodeRatio uint32 `csv:"inode_ratio"`
	Notes      string `csv:"notes"`
}

//go:embed presets.csv
var presetsRawCSV string

var presetsBySlug = map[string]Preset{}

func init() {
	err := gocsv.UnmarshalToCallback(
		strings.NewReader(presetsRawCSV),
		func(row Preset) error {
			if _, exists := presetsBySlug[row.Slug]; exists {
				return fmt.Errorf("duplicate preset slug %q", row.Slug)
			}
			presetsBySlug[row.Slug] = row
			return nil
		},
	)
	if err != nil {
		panic(fmt.Sprintf("presets: malformed embedded preset table: %v", err))
	}
}

// Get looks up a preset by slug, e.g. "hdd-50m".
func Get(slug string) (Preset, error) {
	preset, ok := presetsBySlug[slug]
	if !ok {
		return Preset{}, fmt.Errorf("no preset named %q", slug)
	}
	return preset, nil
}

// List returns every known preset, in no particular order.
func List() []Preset {
	out := make([]Preset, 0, len(presetsBySlug))
	for _, p := range presetsBySlug {
		out = append(out, p)
	}
	return out
}
