package game

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// replayVersion is the file format version written by Save.
const replayVersion = 2

// ErrNoReplay is returned for a session that is not being recorded.
var ErrNoReplay = errors.New("no replay for session")

// ReplayStep is the state after one script run.
type ReplayStep struct {
	Script   string
	Checksum string
	Snapshot *Snapshot
}

// Replay is the ordered list of steps of one session with a read cursor.
type Replay struct {
	SessionID string

	mu     sync.RWMutex
	steps  []ReplayStep
	cursor int
}

// NewReplay creates an empty replay.
func NewReplay(sessionID string) *Replay {
	return &Replay{SessionID: sessionID}
}

// Append records the state reached by scriptName.
func (r *Replay) Append(scriptName string, snap *Snapshot) {
	step := ReplayStep{Script: scriptName, Checksum: snap.Checksum(), Snapshot: snap}
	r.mu.Lock()
	r.steps = append(r.steps, step)
	r.mu.Unlock()
}

// Len returns the number of steps.
func (r *Replay) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}

// Step returns step i.
func (r *Replay) Step(i int) (ReplayStep, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.steps) {
		return ReplayStep{}, false
	}
	return r.steps[i], true
}

// Rewind moves the cursor before the first step.
func (r *Replay) Rewind() {
	r.mu.Lock()
	r.cursor = 0
	r.mu.Unlock()
}

// Next returns the step under the cursor and advances.
func (r *Replay) Next() (ReplayStep, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor >= len(r.steps) {
		return ReplayStep{}, false
	}
	step := r.steps[r.cursor]
	r.cursor++
	return step, true
}

// Prev steps the cursor back and returns that step.
func (r *Replay) Prev() (ReplayStep, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor == 0 {
		return ReplayStep{}, false
	}
	r.cursor--
	return r.steps[r.cursor], true
}

// Seek places the cursor on step i, clamped to the recorded range, and
// returns that step.
func (r *Replay) Seek(i int) (ReplayStep, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.steps) == 0 {
		return ReplayStep{}, false
	}
	i = max(0, min(i, len(r.steps)-1))
	r.cursor = i
	return r.steps[i], true
}

// Checksums lists the step checksums in order.
func (r *Replay) Checksums() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.steps))
	for i, s := range r.steps {
		out[i] = s.Checksum
	}
	return out
}

// Diverges returns the first step at which r and other reached different
// states, or -1 when one is a prefix of the other.
func (r *Replay) Diverges(other *Replay) int {
	a, b := r.Checksums(), other.Checksums()
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return -1
}

type replayHeader struct {
	SessionID string
	Saved     time.Time
	Version   int
	Steps     int
}

func replayPath(dir, sessionID string) string {
	return filepath.Join(dir, sessionID+".replay")
}

// Save writes <dir>/<session id>.replay as gzip-compressed gob.
func (r *Replay) Save(dir string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create replay dir: %w", err)
	}
	f, err := os.Create(replayPath(dir, r.SessionID))
	if err != nil {
		return fmt.Errorf("create replay file: %w", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	enc := gob.NewEncoder(zw)
	header := replayHeader{SessionID: r.SessionID, Saved: time.Now().UTC(), Version: replayVersion, Steps: len(r.steps)}
	if err := enc.Encode(&header); err != nil {
		return fmt.Errorf("encode replay header: %w", err)
	}
	for i := range r.steps {
		if err := enc.Encode(&r.steps[i]); err != nil {
			return fmt.Errorf("encode step %d: %w", i, err)
		}
	}
	return zw.Close()
}

// LoadReplay reads a replay written by Save. Step checksums are recomputed
// and must match the recorded ones.
func LoadReplay(dir, sessionID string) (*Replay, error) {
	f, err := os.Open(replayPath(dir, sessionID))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	defer zr.Close()

	dec := gob.NewDecoder(zr)
	var header replayHeader
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("decode replay header: %w", err)
	}
	if header.Version != replayVersion {
		return nil, fmt.Errorf("unsupported replay version %d", header.Version)
	}

	r := NewReplay(header.SessionID)
	for i := 0; i < header.Steps; i++ {
		var step ReplayStep
		if err := dec.Decode(&step); err != nil {
			return nil, fmt.Errorf("decode step %d: %w", i, err)
		}
		if got := step.Snapshot.Checksum(); got != step.Checksum {
			return nil, fmt.Errorf("step %d (%s): checksum %s, recorded %s", i, step.Script, got, step.Checksum)
		}
		r.steps = append(r.steps, step)
	}
	return r, nil
}

// ReplayRecorder keeps the replays of the sessions being recorded and saves
// them into one directory.
type ReplayRecorder struct {
	dir    string
	logger *zap.Logger

	mu     sync.Mutex
	active map[string]*Replay
}

// NewReplayRecorder creates a recorder saving into dir.
func NewReplayRecorder(logger *zap.Logger, dir string) *ReplayRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayRecorder{dir: dir, logger: logger, active: make(map[string]*Replay)}
}

// Start begins recording a session, discarding any earlier recording.
func (rr *ReplayRecorder) Start(sessionID string) {
	rr.mu.Lock()
	rr.active[sessionID] = NewReplay(sessionID)
	rr.mu.Unlock()
	rr.logger.Info("replay recording started", zap.String("session_id", sessionID))
}

// Recording reports whether sessionID is being recorded.
func (rr *ReplayRecorder) Recording(sessionID string) bool {
	_, ok := rr.Replay(sessionID)
	return ok
}

// Replay returns the in-memory replay of a session being recorded.
func (rr *ReplayRecorder) Replay(sessionID string) (*Replay, bool) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	r, ok := rr.active[sessionID]
	return r, ok
}

// Record appends a step; sessions that are not recorded are ignored.
func (rr *ReplayRecorder) Record(sessionID, scriptName string, snap *Snapshot) {
	r, ok := rr.Replay(sessionID)
	if !ok {
		return
	}
	r.Append(scriptName, snap)
	rr.logger.Debug("replay step recorded",
		zap.String("session_id", sessionID),
		zap.String("script", scriptName),
		zap.Int("steps", r.Len()),
	)
}

// Discard stops recording without saving.
func (rr *ReplayRecorder) Discard(sessionID string) {
	rr.mu.Lock()
	delete(rr.active, sessionID)
	rr.mu.Unlock()
}

// Finish stops recording and saves the replay.
func (rr *ReplayRecorder) Finish(sessionID string) error {
	rr.mu.Lock()
	r, ok := rr.active[sessionID]
	delete(rr.active, sessionID)
	rr.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w %s", ErrNoReplay, sessionID)
	}

	if err := r.Save(rr.dir); err != nil {
		return err
	}
	rr.logger.Info("replay saved",
		zap.String("session_id", sessionID),
		zap.Int("steps", r.Len()),
		zap.String("dir", rr.dir),
	)
	return nil
}

// Load reads a saved replay from the recorder's directory.
func (rr *ReplayRecorder) Load(sessionID string) (*Replay, error) {
	return LoadReplay(rr.dir, sessionID)
}
