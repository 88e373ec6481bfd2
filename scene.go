package nrblib

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	polRe       = regexp.MustCompile(`(?i)(vv|vh|hh|hv)`)
	timestampRe = regexp.MustCompile(`[0-9]{8}T[0-9]{6}`)
)

// ParsePolarization extracts the 2-letter polarization code from a raster
// filename. The code is extracted once at ingestion and carried as structured
// metadata from there on.
func ParsePolarization(path string) (pol PolarizationTag, err error) {
	name := filepath.Base(path)
	found := map[PolarizationTag]struct{}{}
	for _, m := range polRe.FindAllString(name, -1) {
		found[PolarizationTag(strings.ToUpper(m))] = struct{}{}
	}
	if len(found) != 1 {
		err = fmt.Errorf("%s: %w", name, ErrAmbiguousPolarization)
		return
	}
	for pol = range found {
	}
	return
}

// ParseStartTimestamp extracts the acquisition start token (8-digit date plus
// 6-digit time) from a filename.
func ParseStartTimestamp(path string) (t time.Time, err error) {
	name := filepath.Base(path)
	token := timestampRe.FindString(name)
	if token == "" {
		err = fmt.Errorf("%s: %w", name, ErrNoTimestamp)
		return
	}
	return time.Parse(SCENE_TIMESTAMP_LAYOUT, token)
}

// SortScenesByStart orders scenes by acquisition start time, ascending. The
// input slice is not modified.
func SortScenesByStart(scenes []SourceScene) []SourceScene {
	sorted := make([]SourceScene, len(scenes))
	copy(sorted, scenes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
	return sorted
}

// GroupByTime splits a chronologically mixed scene list into groups of
// consecutive acquisitions whose start gap stays within threshold.
func GroupByTime(scenes []SourceScene, threshold time.Duration) (groups [][]SourceScene) {
	if len(scenes) == 0 {
		return
	}
	sorted := SortScenesByStart(scenes)
	group := []SourceScene{sorted[0]}
	for _, s := range sorted[1:] {
		if s.Start.Sub(group[len(group)-1].Start) <= threshold {
			group = append(group, s)
		} else {
			groups = append(groups, group)
			group = []SourceScene{s}
		}
	}
	groups = append(groups, group)
	return
}

// CheckConsistency verifies that attributes which must match across a
// multi-scene selection actually do.
func CheckConsistency(scenes []SourceScene) error {
	if len(scenes) < 2 {
		return nil
	}
	first := scenes[0]
	for _, s := range scenes[1:] {
		if s.Sensor != first.Sensor || s.Mode != first.Mode ||
			s.Product != first.Product || s.DataTakeID != first.DataTakeID {
			return fmt.Errorf("scene %s vs %s: %w", first.ID, s.ID, ErrSceneMismatch)
		}
	}
	return nil
}

// CheckSharedBorder verifies that two consecutive scenes have touching
// footprints, so their mosaics can share a border within a tile.
func CheckSharedBorder(a, b SourceScene) error {
	if len(a.Footprint) == 0 || len(b.Footprint) == 0 {
		return fmt.Errorf("scene %s/%s: %w", a.ID, b.ID, ErrNoSharedBorder)
	}
	if !a.Footprint.Bound().Intersects(b.Footprint.Bound()) {
		return fmt.Errorf("scene %s/%s: %w", a.ID, b.ID, ErrNoSharedBorder)
	}
	return nil
}

// crcHqx is CRC-16/CCITT with the given initial value (poly 0x1021, no
// reflection), matching the id scheme of upstream NRB products.
func crcHqx(data []byte, crc uint16) uint16 {
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// GenerateUniqueID returns the 4-hex-digit product identifier derived from
// the given bytes, typically the processing time in isoformat.
func GenerateUniqueID(encoded []byte) string {
	return fmt.Sprintf("%04X", crcHqx(encoded, 0xffff))
}
