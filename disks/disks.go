// Package disks is a small registry of historical floppy disk geometries,
// used to give operators a human-readable name for the media a volume
// claims to be formatted for: a CSV-backed lookup table narrowed to the set
// this driver can actually recognize.
package disks

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// CanonicalSlug names the only geometry this driver formats or mounts: the
// standard double-sided 1.44 MB 3.5" high-density floppy.
const CanonicalSlug = "3.5hd"

// DiskGeometry describes one historical floppy disk format, as cataloged by
// https://en.wikipedia.org/wiki/List_of_floppy_disk_formats.
type DiskGeometry struct {
	Name               string `csv:"name"`
	Slug               string `csv:"slug"`
	FirstYearAvailable uint   `csv:"first_year_available"`
	FormFactor         string `csv:"form_factor"`
	IsRemovable        uint   `csv:"is_removable"`

	BitsPerAddressUnit    uint `csv:"bits_per_address_unit"`
	AddressUnitsPerSector uint `csv:"address_units_per_sector"`
	SectorsPerTrack       uint `csv:"sectors_per_track"`
	TotalDataTracks       uint `csv:"total_data_tracks"`
	HiddenTracks          uint `csv:"hidden_tracks"`
	Heads                 uint `csv:"heads"`

	Notes string `csv:"notes"`
}

// TotalSizeBytes gives the size of the storage device, rounded up to the
// nearest byte.
func (g *DiskGeometry) TotalSizeBytes() int64 {
	bits := int64(
		g.BitsPerAddressUnit * g.AddressUnitsPerSector * g.SectorsPerTrack *
			g.TotalDataTracks * g.Heads)
	if bits%8 == 0 {
		return bits / 8
	}
	return (bits / 8) + 1
}

//go:embed disk-geometries.csv
var diskGeometriesRawCSV string

var diskGeometries = map[string]DiskGeometry{}

// GetPredefinedDiskGeometry looks up a known floppy geometry by slug.
func GetPredefinedDiskGeometry(slug string) (DiskGeometry, error) {
	geometry, ok := diskGeometries[slug]
	if ok {
		return geometry, nil
	}
	return DiskGeometry{}, fmt.Errorf("no predefined disk geometry exists with slug %q", slug)
}

// IdentifyBySectorsAndHeads finds the known geometry, if any, whose track
// layout matches the given sectors-per-track/head-count/track-count triple.
// Used to name a mounted volume's media for diagnostics even when it isn't
// the canonical geometry this driver can actually format.
func IdentifyBySectorsAndHeads(sectorsPerTrack, heads, totalTracks uint) (DiskGeometry, bool) {
	for _, g := range diskGeometries {
		if g.SectorsPerTrack == sectorsPerTrack && g.Heads == heads && g.TotalDataTracks == totalTracks {
			return g, true
		}
	}
	return DiskGeometry{}, false
}

func init() {
	reader := strings.NewReader(diskGeometriesRawCSV)
	err := gocsv.UnmarshalToCallback(
		reader,
		func(row DiskGeometry) error {
			if _, exists := diskGeometries[row.Slug]; exists {
				return fmt.Errorf("duplicate definition for disk %q", row.Slug)
			}
			diskGeometries[row.Slug] = row
			return nil
		},
	)
	if err != nil && err != io.EOF {
		panic(err)
	}
}
