package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kesa0v0/WeimarPort/internal/game/board"
)

// snapshotVersion is bumped whenever the canonical representation changes.
const snapshotVersion = 2

// ContainerSnapshot is the frozen content of one container.
type ContainerSnapshot struct {
	ID        string
	Kind      string
	Capacity  int
	Occupancy int
	Members   []string
}

// EntitySnapshot is the frozen state of one entity.
type EntitySnapshot struct {
	ID      string
	Kind    string
	DataID  string
	Faction string
	Flipped bool
}

// FactionSnapshot is the frozen mutable state of one faction.
type FactionSnapshot struct {
	Faction       string
	VictoryPoints int
	ReservePoints int
	Controls      []string
	ControlledBy  string

	// CoupActionCost is rule data, not state; it is left out of checksums.
	CoupActionCost int
}

// Snapshot is a point-in-time copy of a session's state.
type Snapshot struct {
	SessionID string
	Timestamp time.Time

	Round           int
	Phase           string
	CurrentParty    string
	RoundStartParty string

	Containers []ContainerSnapshot
	Entities   []EntitySnapshot
	Factions   []FactionSnapshot
	Coalition  []string
	Tracks     map[string]int
	Flags      map[string]int
}

// SerializationChecksum identifies a snapshot's game state.
type SerializationChecksum struct {
	Hash      string // SHA-256 of the canonical representation
	Timestamp string
	Version   int
}

var containerKinds = []board.ContainerKind{
	board.KindCity,
	board.KindReserve,
	board.KindCentralAuthority,
	board.KindParliament,
	board.KindOpinionTrack,
	board.KindDisposed,
	board.KindUnavailable,
}

// Snapshot captures the current state. It must not be called while another
// goroutine is running a script if a consistent view is required.
func (s *Session) Snapshot() *Snapshot {
	round := s.Round()
	snap := &Snapshot{
		SessionID:       s.id,
		Timestamp:       time.Now().UTC(),
		Round:           round.Round,
		Phase:           round.Phase.String(),
		CurrentParty:    string(round.CurrentParty),
		RoundStartParty: string(round.RoundStartParty),
		Tracks:          make(map[string]int),
		Flags:           make(map[string]int),
	}

	reg := s.registry
	for _, kind := range containerKinds {
		for _, c := range reg.Containers(kind) {
			snap.Containers = append(snap.Containers, ContainerSnapshot{
				ID:        c.ID,
				Kind:      c.Kind.String(),
				Capacity:  c.Capacity,
				Occupancy: c.Occupancy,
				Members:   c.Members,
			})
		}
	}
	for _, id := range reg.EntityIDs() {
		e, ok := reg.Entity(id)
		if !ok {
			continue
		}
		snap.Entities = append(snap.Entities, EntitySnapshot{
			ID:      id,
			Kind:    e.Kind().String(),
			DataID:  e.DataID(),
			Faction: string(e.Faction()),
			Flipped: e.Kind() == board.KindMarker && reg.IsFlipped(id),
		})
	}

	for _, t := range s.factions.Types() {
		st, _ := s.factions.State(t)
		fs := FactionSnapshot{
			Faction:       string(t),
			VictoryPoints: st.VictoryPoints,
			ReservePoints: st.ReservePoints,
			ControlledBy:  string(s.factions.MinorPartyController(t)),

			CoupActionCost: s.factions.CoupActionCost(t),
		}
		for _, m := range st.ControlledMinorParty {
			fs.Controls = append(fs.Controls, string(m))
		}
		snap.Factions = append(snap.Factions, fs)
	}
	for _, t := range s.factions.Coalition() {
		snap.Coalition = append(snap.Coalition, string(t))
	}
	for tr, pos := range s.tracks.Positions() {
		snap.Tracks[string(tr)] = pos
	}
	for _, ft := range s.flags.Types() {
		snap.Flags[ft] = s.flags.Count(ft)
	}
	return snap
}

// ComputeChecksum hashes the canonical representation. The session id and
// timestamp are excluded so that two sessions fed the same scripts agree.
func (snap *Snapshot) ComputeChecksum() (*SerializationChecksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(snap.canonical())); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &SerializationChecksum{
		Hash:      hex.EncodeToString(hash.Sum(nil)),
		Timestamp: snap.Timestamp.Format("2006-01-02T15:04:05.000Z"),
		Version:   snapshotVersion,
	}, nil
}

// Checksum is ComputeChecksum returning only the hash.
func (snap *Snapshot) Checksum() string {
	sum, err := snap.ComputeChecksum()
	if err != nil {
		return ""
	}
	return sum.Hash
}

func (snap *Snapshot) canonical() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "ROUND:%d|%s|%s|%s\n", snap.Round, snap.Phase, snap.CurrentParty, snap.RoundStartParty)

	containers := append([]ContainerSnapshot(nil), snap.Containers...)
	sort.Slice(containers, func(i, j int) bool { return containers[i].ID < containers[j].ID })
	for _, c := range containers {
		// Member order is kept: it decides which base is evicted first.
		fmt.Fprintf(&buf, "CONTAINER:%s|%s|%d|%d\n", c.ID, c.Kind, c.Capacity, c.Occupancy)
		fmt.Fprintf(&buf, "  MEMBERS:%s\n", strings.Join(c.Members, ","))
	}

	entities := append([]EntitySnapshot(nil), snap.Entities...)
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
	for _, e := range entities {
		fmt.Fprintf(&buf, "ENTITY:%s|%s|%s|%s|%t\n", e.ID, e.Kind, e.DataID, e.Faction, e.Flipped)
	}

	factions := append([]FactionSnapshot(nil), snap.Factions...)
	sort.Slice(factions, func(i, j int) bool { return factions[i].Faction < factions[j].Faction })
	for _, f := range factions {
		controls := append([]string(nil), f.Controls...)
		sort.Strings(controls)
		fmt.Fprintf(&buf, "FACTION:%s|%d|%d|%s|%s\n",
			f.Faction, f.VictoryPoints, f.ReservePoints, strings.Join(controls, ","), f.ControlledBy)
	}

	// Coalition order matters: the leading party comes first.
	fmt.Fprintf(&buf, "COALITION:%s\n", strings.Join(snap.Coalition, ","))

	writeCounts(&buf, "TRACK", snap.Tracks)
	writeCounts(&buf, "FLAG", snap.Flags)
	return buf.String()
}

func writeCounts(buf *bytes.Buffer, tag string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s:%s=%d\n", tag, k, counts[k])
	}
}

// VerifyChecksum reports whether the snapshot hashes to expected.
func (snap *Snapshot) VerifyChecksum(expected *SerializationChecksum) (bool, error) {
	computed, err := snap.ComputeChecksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

// SerializeToBytes gob-encodes the snapshot.
func (snap *Snapshot) SerializeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeSnapshot decodes a gob-encoded snapshot.
func DeserializeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// ValidateSerializationRoundtrip checks that encoding and decoding keep the
// checksum.
func ValidateSerializationRoundtrip(snap *Snapshot) error {
	before, err := snap.ComputeChecksum()
	if err != nil {
		return err
	}
	data, err := snap.SerializeToBytes()
	if err != nil {
		return err
	}
	decoded, err := DeserializeSnapshot(data)
	if err != nil {
		return err
	}
	after, err := decoded.ComputeChecksum()
	if err != nil {
		return err
	}
	if before.Hash != after.Hash {
		return fmt.Errorf("checksum mismatch: original=%s, deserialized=%s", before.Hash, after.Hash)
	}
	return nil
}
