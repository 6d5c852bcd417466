package colorsync

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red   = colorful.Color{R: 1}
	green = colorful.Color{G: 1}
)

func fixed(c colorful.Color) Source {
	return func() (colorful.Color, error) { return c, nil }
}

func TestState(t *testing.T) {
	assert := assert.New(t)
	s := New(fixed(red))

	assert.False(s.Enabled())
	assert.Equal(DefaultColor, s.Color())
	assert.Equal(DefaultColor, s.BuildingColor())

	assert.True(s.Toggle())
	assert.True(s.Enabled())
	assert.Equal(red, s.Color())
	assert.Equal(red, s.BuildingColor())

	assert.False(s.Toggle())
	// The cached color stays, buildings go back to the default.
	assert.Equal(red, s.Color())
	assert.Equal(DefaultColor, s.BuildingColor())
}

func TestState_SourceError(t *testing.T) {
	s := New(func() (colorful.Color, error) {
		return colorful.Color{}, errors.New("no faction")
	})
	s.SetColor(red)
	s.SetEnabled(true)
	assert.Equal(t, DefaultColor, s.Color())
}

func TestOnMechColorChanged(t *testing.T) {
	tests := map[string]struct {
		enabled  bool
		color    colorful.Color
		expected bool
	}{
		"disabled":        {false, green, false},
		"changed":         {true, green, true},
		"small change":    {true, colorful.Color{R: 1, G: 0.005}, true},
		"same":            {true, red, true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			s := New(fixed(red))
			s.SetColor(red)
			s.SetEnabled(tc.enabled)

			assert.Equal(t, tc.expected, s.OnMechColorChanged(tc.color))
			if tc.expected {
				assert.Equal(t, tc.color, s.Color())
			} else {
				assert.Equal(t, red, s.Color())
			}
		})
	}
}

func TestPoll(t *testing.T) {
	assert := assert.New(t)

	current := red
	s := New(func() (colorful.Color, error) { return current, nil })
	assert.False(s.Poll())

	s.SetEnabled(true)
	assert.False(s.Poll())

	current = colorful.Color{R: 1, G: 0.005}
	assert.False(s.Poll(), "change below threshold")
	assert.Equal(red, s.Color())

	current = green
	assert.True(s.Poll())
	assert.Equal(green, s.BuildingColor())

	assert.False(New(nil).Poll())
}

func TestSubscribe(t *testing.T) {
	assert := assert.New(t)
	s := New(fixed(red))

	var got []Snapshot
	cancel := s.Subscribe(func(snap Snapshot) {
		got = append(got, snap)
	})

	s.SetEnabled(true)
	s.OnMechColorChanged(green)
	cancel()
	cancel()
	s.Reset()

	assert.Equal([]Snapshot{
		{Enabled: true, Color: "#ff0000"},
		{Enabled: true, Color: "#00ff00"},
	}, got)
}

func TestReset(t *testing.T) {
	assert := assert.New(t)
	s := New(fixed(red))
	s.SetEnabled(true)

	s.Reset()
	assert.False(s.Enabled())
	assert.Equal(DefaultColor, s.Color())
}

func TestSaveLoad(t *testing.T) {
	assert := assert.New(t)

	s := New(fixed(green))
	s.SetEnabled(true)

	var buf bytes.Buffer
	require.NoError(t, s.Save(&buf))
	assert.Contains(buf.String(), `color = "#00ff00"`)

	// Loading doesn't consult the source.
	loaded := New(fixed(red))
	require.NoError(t, loaded.Load(&buf))
	assert.True(loaded.Enabled())
	assert.Equal("#00ff00", loaded.BuildingColor().Hex())
}

func TestLoad_Errors(t *testing.T) {
	s := New(nil)
	assert.Error(t, s.Load(bytes.NewBufferString("enabled = ")))
	assert.Error(t, s.Load(bytes.NewBufferString(`color = "blue"`)))
	assert.False(t, s.Enabled())

	require.NoError(t, s.Load(bytes.NewBufferString("enabled = true")))
	assert.Equal(t, DefaultColor, s.Color())
}

func TestState_Concurrent(t *testing.T) {
	s := New(fixed(red))
	cancel := s.Subscribe(func(Snapshot) {})
	defer cancel()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				s.Toggle()
				s.OnMechColorChanged(colorful.Color{B: float64(i) / 8})
				_ = s.BuildingColor()
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()
}

func TestToggle_Concurrent(t *testing.T) {
	s := New(fixed(red))

	var toggles int
	var mu sync.Mutex
	cancel := s.Subscribe(func(Snapshot) {
		mu.Lock()
		toggles++
		mu.Unlock()
	})
	defer cancel()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 51 {
				s.Toggle()
			}
		}()
	}
	wg.Wait()

	// Every flip lands, so an even number of them leaves sync off.
	assert.False(t, s.Enabled())
	assert.Equal(t, 8*51, toggles)
}
