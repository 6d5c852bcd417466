// Package colorsync keeps the process-wide color sync setting: whether
// synced buildings follow the player's mechanoid color, and the last color
// seen.
//
// A State is created at startup and handed to whatever needs it. Reset
// returns it to its initial values when a world is loaded, after which Load
// restores the saved snapshot.
package colorsync

import (
	"fmt"
	"io"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/tliron/commonlog"
)

// DefaultColor is the crystal blue used when sync is off or no mechanoid
// color is known.
var DefaultColor = colorful.Color{R: 0.3, G: 0.7, B: 1}

// ChangeThreshold is the RGB distance below which a new mechanoid color is
// considered unchanged.
const ChangeThreshold = 0.01

// Source reports the current mechanoid color of the player faction.
type Source func() (colorful.Color, error)

// Snapshot is the persisted form of a State.
type Snapshot struct {
	Enabled bool   `toml:"enabled"`
	Color   string `toml:"color"`
}

// State is safe for concurrent use.
type State struct {
	source Source
	log    commonlog.Logger

	mu      sync.RWMutex
	enabled bool
	color   colorful.Color

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// New returns a disabled State caching DefaultColor. source may be nil, in
// which case enabling sync keeps the cached color.
func New(source Source) *State {
	return &State{
		source: source,
		log:    commonlog.GetLogger("colorsync"),
		color:  DefaultColor,
		subs:   map[int]func(Snapshot){},
	}
}

func (s *State) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// SetEnabled turns sync on or off. Turning it on caches the current color
// from the source.
func (s *State) SetEnabled(enabled bool) {
	s.update(func(bool) bool { return enabled })
}

// Toggle flips the setting and returns the new value.
func (s *State) Toggle() bool {
	return s.update(func(enabled bool) bool { return !enabled })
}

// update replaces the enabled setting with next(current) under a single
// lock and returns the new setting.
func (s *State) update(next func(bool) bool) bool {
	s.mu.Lock()
	enabled := next(s.enabled)
	if s.enabled == enabled {
		s.mu.Unlock()
		return enabled
	}
	s.enabled = enabled
	if enabled {
		s.color = s.current()
	}
	snap := s.snapshot()
	s.mu.Unlock()

	s.log.Info("color sync toggled", "enabled", enabled, "color", snap.Color)
	s.publish(snap)
	return enabled
}

// current reads the source, falling back to DefaultColor. s.mu must be
// held.
func (s *State) current() colorful.Color {
	if s.source == nil {
		return s.color
	}
	c, err := s.source()
	if err != nil {
		s.log.Warning("reading mechanoid color", "error", err)
		return DefaultColor
	}
	return c
}

// Color returns the cached mechanoid color.
func (s *State) Color() colorful.Color {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.color
}

// SetColor caches c regardless of the enabled setting.
func (s *State) SetColor(c colorful.Color) {
	s.mu.Lock()
	s.color = c
	snap := s.snapshot()
	s.mu.Unlock()

	s.publish(snap)
}

// BuildingColor is the color synced buildings draw with.
func (s *State) BuildingColor() colorful.Color {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.enabled {
		return s.color
	}
	return DefaultColor
}

// OnMechColorChanged caches c if sync is enabled. It reports whether
// subscribers were notified.
func (s *State) OnMechColorChanged(c colorful.Color) bool {
	return s.apply(c, -1)
}

// Poll reads the source and caches the result if sync is enabled and it
// differs from the cached color by more than ChangeThreshold.
func (s *State) Poll() bool {
	if s.source == nil || !s.Enabled() {
		return false
	}
	c, err := s.source()
	if err != nil {
		s.log.Warning("reading mechanoid color", "error", err)
		return false
	}
	return s.apply(c, ChangeThreshold)
}

func (s *State) apply(c colorful.Color, threshold float64) bool {
	s.mu.Lock()
	if !s.enabled || s.color.DistanceRgb(c) <= threshold {
		s.mu.Unlock()
		return false
	}
	s.color = c
	snap := s.snapshot()
	s.mu.Unlock()

	s.log.Debug("mechanoid color changed", "color", snap.Color)
	s.publish(snap)
	return true
}

// Subscribe registers fn to be called with the new state after every
// change. The returned function unregisters it.
func (s *State) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			delete(s.subs, id)
		})
	}
}

func (s *State) publish(snap Snapshot) {
	s.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// Reset disables sync and restores DefaultColor. Subscriptions are kept.
func (s *State) Reset() {
	s.mu.Lock()
	s.enabled = false
	s.color = DefaultColor
	snap := s.snapshot()
	s.mu.Unlock()

	s.publish(snap)
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *State) snapshot() Snapshot {
	return Snapshot{Enabled: s.enabled, Color: s.color.Hex()}
}

// Save writes the state as TOML.
func (s *State) Save(w io.Writer) error {
	return toml.NewEncoder(w).Encode(s.Snapshot())
}

// Load replaces the state with a snapshot written by Save. The saved color
// is kept as is; the source is not consulted.
func (s *State) Load(r io.Reader) error {
	var snap Snapshot
	if _, err := toml.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("decoding color sync state: %w", err)
	}

	c := DefaultColor
	if snap.Color != "" {
		var err error
		c, err = colorful.Hex(snap.Color)
		if err != nil {
			return fmt.Errorf("color %q: %w", snap.Color, err)
		}
	}

	s.mu.Lock()
	s.enabled = snap.Enabled
	s.color = c
	snap = s.snapshot()
	s.mu.Unlock()

	s.publish(snap)
	return nil
}
