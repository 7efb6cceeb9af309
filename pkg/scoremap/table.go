// Package scoremap resolves absolute pointer coordinates into grid cells,
// per-cell intensity scores and audio gain values. The intensity table is
// produced by an external offline analysis pipeline and consumed here as an
// immutable lookup loaded once at startup.
package scoremap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoGridMap means the analysis cache contained no usable grid map for
// any interest factor. Callers typically fall back to an all-zero table
// (silent feedback) with a warning.
var ErrNoGridMap = errors.New("no grid map in analysis result")

// Table is an immutable mapping from cell label to intensity in [0, 100].
// Every cell of the rows×cols grid is present; lookups of labels outside the
// table return 0.
type Table struct {
	rows  int
	cols  int
	cells map[string]int
}

// NewTable builds a table from raw cell values. Values are clamped into
// [0, 100]; every grid cell missing from the input defaults to 0. Labels
// outside the grid are kept as provided, matching the analyzer's output.
func NewTable(rows, cols int, cells map[string]int) *Table {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}

	out := make(map[string]int, rows*cols)
	for k, v := range cells {
		out[k] = clampIntensity(v)
	}
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			label := Cell{Row: row, Col: col}.Label()
			if _, ok := out[label]; !ok {
				out[label] = 0
			}
		}
	}

	return &Table{rows: rows, cols: cols, cells: out}
}

// Rows returns the grid row count.
func (t *Table) Rows() int { return t.rows }

// Cols returns the grid column count.
func (t *Table) Cols() int { return t.cols }

// Intensity returns the score for a cell label, 0 when absent.
func (t *Table) Intensity(label string) int {
	return t.cells[label]
}

// Cells returns a copy of the full label→intensity mapping.
func (t *Table) Cells() map[string]int {
	out := make(map[string]int, len(t.cells))
	for k, v := range t.cells {
		out[k] = v
	}
	return out
}

func clampIntensity(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// CachePath returns the analysis cache file for an image. The cache is named
// after the image file itself, extension included, so image3.jpg and
// image3.png never collide.
func CachePath(imagePath, cacheDir string) string {
	return filepath.Join(cacheDir, filepath.Base(imagePath)+".json")
}

// LoadCached loads the score table for an image from the JSON cache written
// by the offline analysis pipeline. factorIndex selects which interest
// factor's grid map to use; when that entry has no usable map, the first
// factor that has one is used instead. A missing or unreadable cache file is
// an error: generating it is the pipeline's job, not ours.
func LoadCached(imagePath, cacheDir string, factorIndex, rows, cols int) (*Table, error) {
	path := CachePath(imagePath, cacheDir)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis cache %s: %w", path, err)
	}
	return ParseAnalysis(data, factorIndex, rows, cols)
}

// analysisResult mirrors the slice of the analyzer's cache file we care
// about. Grid map values are decoded loosely: the pipeline has emitted
// numbers and numeric strings over time.
type analysisResult struct {
	InterestFactors []struct {
		GridScoring *struct {
			GridMap map[string]any `json:"grid_map"`
		} `json:"grid_scoring"`
	} `json:"interest_factors"`
}

// ParseAnalysis extracts a score table from raw analysis JSON.
func ParseAnalysis(data []byte, factorIndex, rows, cols int) (*Table, error) {
	var result analysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse analysis cache: %w", err)
	}

	// Requested factor first, then any other factor with a usable map
	indices := make([]int, 0, len(result.InterestFactors))
	if factorIndex >= 0 && factorIndex < len(result.InterestFactors) {
		indices = append(indices, factorIndex)
	}
	for i := range result.InterestFactors {
		if i != factorIndex {
			indices = append(indices, i)
		}
	}

	for _, idx := range indices {
		scoring := result.InterestFactors[idx].GridScoring
		if scoring == nil || len(scoring.GridMap) == 0 {
			continue
		}
		cells := make(map[string]int, len(scoring.GridMap))
		for label, v := range scoring.GridMap {
			cells[label] = coerceIntensity(v)
		}
		return NewTable(rows, cols, cells), nil
	}

	return nil, ErrNoGridMap
}

// coerceIntensity converts a loosely-typed grid map value to an intensity.
// Unparseable values score 0 rather than failing the whole load.
func coerceIntensity(v any) int {
	switch n := v.(type) {
	case float64:
		return clampIntensity(int(n))
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return clampIntensity(i)
		}
	}
	return 0
}
