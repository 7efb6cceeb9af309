package scoremap

import (
	"fmt"
)

// Cell identifies one grid cell by zero-based row and column.
type Cell struct {
	Row int
	Col int
}

// Label returns the deterministic cell label: column letters then one-based
// row number. "A1" is the top-left cell; columns beyond Z continue AA, AB…
func (c Cell) Label() string {
	return columnLetters(c.Col) + fmt.Sprintf("%d", c.Row+1)
}

// columnLetters encodes a zero-based column index in bijective base-26.
func columnLetters(col int) string {
	if col < 0 {
		col = 0
	}
	buf := make([]byte, 0, 2)
	n := col + 1
	for n > 0 {
		n--
		buf = append([]byte{byte('A' + n%26)}, buf...)
		n /= 26
	}
	return string(buf)
}

// Locate maps a coordinate within a viewport onto a rows×cols grid.
// Telemetry is untrusted network input, so this never fails: non-positive
// viewport dimensions are clamped to 1 and out-of-range coordinates clamp
// to the edge cells.
func Locate(x, y, w, h float64, rows, cols int) Cell {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}

	wi := int(w)
	if wi < 1 {
		wi = 1
	}
	hi := int(h)
	if hi < 1 {
		hi = 1
	}

	col := int(x / float64(wi) * float64(cols))
	row := int(y / float64(hi) * float64(rows))

	if col < 0 {
		col = 0
	}
	if col > cols-1 {
		col = cols - 1
	}
	if row < 0 {
		row = 0
	}
	if row > rows-1 {
		row = rows - 1
	}

	return Cell{Row: row, Col: col}
}

// Gain converts an intensity score to a playback gain in [0, 1]:
//
//	gain = clamp(minIntensity + intensity/100 * factor, 0, 1)
//
// minIntensity is clamped into [0, 1] and factor floored at 0 before use.
// The affine floor keeps low-score cells perceptible while still allowing
// amplification above proportional scaling.
func Gain(intensity int, minIntensity, factor float64) float64 {
	raw := float64(clampIntensity(intensity)) / 100.0

	if minIntensity < 0 {
		minIntensity = 0
	}
	if minIntensity > 1 {
		minIntensity = 1
	}
	if factor < 0 {
		factor = 0
	}

	gain := minIntensity + raw*factor
	if gain < 0 {
		return 0
	}
	if gain > 1 {
		return 1
	}
	return gain
}

// ResolverConfig holds the grid geometry and gain curve parameters
type ResolverConfig struct {
	Rows int
	Cols int

	// Gain curve: gain = clamp(MinIntensity + intensity/100 * IntensityFactor)
	MinIntensity    float64
	IntensityFactor float64
}

// DefaultResolverConfig returns the reference 6×6 grid with a perceptible
// floor and moderate amplification.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		Rows:            6,
		Cols:            6,
		MinIntensity:    0.2,
		IntensityFactor: 1.5,
	}
}

// Validate checks the resolver configuration.
func (c ResolverConfig) Validate() error {
	if c.Rows < 1 || c.Cols < 1 {
		return fmt.Errorf("grid must be at least 1x1, got %dx%d", c.Rows, c.Cols)
	}
	if c.MinIntensity < 0 || c.MinIntensity > 1 {
		return fmt.Errorf("min intensity must be in [0,1], got %g", c.MinIntensity)
	}
	if c.IntensityFactor < 0 {
		return fmt.Errorf("intensity factor must be non-negative, got %g", c.IntensityFactor)
	}
	return nil
}

// Resolution is the outcome of resolving one position.
type Resolution struct {
	Cell      Cell
	Label     string
	Intensity int
	Gain      float64
}

// Resolver binds a grid geometry, gain curve and score table.
type Resolver struct {
	cfg   ResolverConfig
	table *Table
}

// NewResolver creates a resolver over an immutable score table.
func NewResolver(cfg ResolverConfig, table *Table) *Resolver {
	if table == nil {
		table = NewTable(cfg.Rows, cfg.Cols, nil)
	}
	return &Resolver{cfg: cfg, table: table}
}

// Resolve maps a position and viewport to its cell, intensity and gain.
func (r *Resolver) Resolve(x, y, w, h float64) Resolution {
	cell := Locate(x, y, w, h, r.cfg.Rows, r.cfg.Cols)
	label := cell.Label()
	intensity := r.table.Intensity(label)

	return Resolution{
		Cell:      cell,
		Label:     label,
		Intensity: intensity,
		Gain:      Gain(intensity, r.cfg.MinIntensity, r.cfg.IntensityFactor),
	}
}

// Table returns the resolver's score table.
func (r *Resolver) Table() *Table {
	return r.table
}

// Config returns the resolver configuration.
func (r *Resolver) Config() ResolverConfig {
	return r.cfg
}
