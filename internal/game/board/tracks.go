package board

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Track names an integer game track.
type Track string

const (
	TrackEconomy        Track = "Economy"
	TrackForeignAffairs Track = "ForeignAffairs"
	TrackNSDAP          Track = "NSDAP"
)

// DefaultTrackMax is used for tracks without a configured maximum.
const DefaultTrackMax = 10

// ParseTrack resolves a track name case-insensitively.
func ParseTrack(name string) (Track, error) {
	for _, t := range []Track{TrackEconomy, TrackForeignAffairs, TrackNSDAP} {
		if strings.EqualFold(string(t), strings.TrimSpace(name)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown track %q", name)
}

// Tracks holds track positions clamped to [0, max].
type Tracks struct {
	mu        sync.RWMutex
	positions map[Track]int
	max       map[Track]int
}

// NewTracks creates tracks at position 0. Missing maxima default to DefaultTrackMax.
func NewTracks(max map[Track]int) *Tracks {
	t := &Tracks{
		positions: make(map[Track]int),
		max:       make(map[Track]int),
	}
	for _, tr := range []Track{TrackEconomy, TrackForeignAffairs, TrackNSDAP} {
		t.positions[tr] = 0
		t.max[tr] = DefaultTrackMax
		if m, ok := max[tr]; ok && m > 0 {
			t.max[tr] = m
		}
	}
	return t
}

// Move shifts a track by delta and returns the clamped new position.
func (t *Tracks) Move(tr Track, delta int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pos, ok := t.positions[tr]
	if !ok {
		return 0, fmt.Errorf("unknown track %q", tr)
	}
	pos += delta
	if pos < 0 {
		pos = 0
	}
	if pos > t.max[tr] {
		pos = t.max[tr]
	}
	t.positions[tr] = pos
	return pos, nil
}

// Position returns the current position of a track.
func (t *Tracks) Position(tr Track) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.positions[tr]
}

// Positions returns a copy of every track position.
func (t *Tracks) Positions() map[Track]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[Track]int, len(t.positions))
	for k, v := range t.positions {
		out[k] = v
	}
	return out
}

// Flags counts foreign-affairs flags by type.
type Flags struct {
	mu     sync.RWMutex
	counts map[string]int
}

// NewFlags creates an empty flag table.
func NewFlags() *Flags {
	return &Flags{counts: make(map[string]int)}
}

// Add places n flags of flagType and returns the new count.
func (f *Flags) Add(flagType string, n int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[flagType] += n
	if f.counts[flagType] < 0 {
		f.counts[flagType] = 0
	}
	return f.counts[flagType]
}

// Count returns the number of flags of flagType.
func (f *Flags) Count(flagType string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.counts[flagType]
}

// Types returns the flag types with a positive count, sorted.
func (f *Flags) Types() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []string
	for k, v := range f.counts {
		if v > 0 {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
