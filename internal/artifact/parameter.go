// Package artifact locates and rewrites the tunable parameter embedded in
// the target artifact's source text, e.g.
//
//	double energy_decay = 0.002;
//
// Only the first declaration in a file counts.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"regexp"
	"strconv"
)

// ErrNotFound means the artifact has no declaration of the parameter.
var ErrNotFound = errors.New("parameter not found")

// ErrUnrepresentable means no value at the configured precision fits the bounds.
var ErrUnrepresentable = errors.New("bounds not representable at precision")

// Bounds is the inclusive range a parameter is clamped to.
type Bounds struct {
	Min float64
	Max float64
}

// Clamp returns v limited to [Min, Max].
func (b Bounds) Clamp(v float64) float64 {
	return math.Max(b.Min, math.Min(b.Max, v))
}

// Contains reports whether v lies inside the bounds.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Parameter describes one tunable declaration.
type Parameter struct {
	Keyword   string
	Name      string
	Bounds    Bounds
	Precision int

	re *regexp.Regexp
}

// Match is a located declaration.
type Match struct {
	Value   float64
	Literal string
	// Start and End delimit the literal within the source.
	Start, End int
}

// NewParameter compiles the declaration pattern for keyword and name.
func NewParameter(keyword, name string, bounds Bounds, precision int) (*Parameter, error) {
	if keyword == "" || name == "" {
		return nil, fmt.Errorf("keyword and name are required")
	}
	if bounds.Min > bounds.Max {
		return nil, fmt.Errorf("invalid bounds [%g, %g]", bounds.Min, bounds.Max)
	}
	if precision < 0 {
		precision = 6
	}
	pattern := `\b` + regexp.QuoteMeta(keyword) + `\s+` + regexp.QuoteMeta(name) +
		`\s*=\s*([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)\s*;`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	p := &Parameter{Keyword: keyword, Name: name, Bounds: bounds, Precision: precision, re: re}
	if _, err := p.Quantize(bounds.Min); err != nil {
		return nil, err
	}
	return p, nil
}

// Find returns the first declaration in src.
func (p *Parameter) Find(src []byte) (Match, bool) {
	loc := p.re.FindSubmatchIndex(src)
	if loc == nil {
		return Match{}, false
	}
	literal := string(src[loc[2]:loc[3]])
	v, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return Match{}, false
	}
	return Match{Value: v, Literal: literal, Start: loc[2], End: loc[3]}, true
}

// Format renders v with the parameter's fixed precision.
func (p *Parameter) Format(v float64) string {
	return strconv.FormatFloat(v, 'f', p.Precision, 64)
}

// Quantize clamps v and rounds it to the parameter's precision. When
// rounding lands outside the bounds the value moves one step inward, so the
// written literal always reads back within [Min, Max].
func (p *Parameter) Quantize(v float64) (float64, error) {
	q := p.round(p.Bounds.Clamp(v))
	step := math.Pow10(-p.Precision)
	if q < p.Bounds.Min {
		q = p.round(q + step)
	}
	if q > p.Bounds.Max {
		q = p.round(q - step)
	}
	if !p.Bounds.Contains(q) {
		return 0, fmt.Errorf("%w: [%g, %g] at %d decimals", ErrUnrepresentable, p.Bounds.Min, p.Bounds.Max, p.Precision)
	}
	return q, nil
}

func (p *Parameter) round(v float64) float64 {
	r, _ := strconv.ParseFloat(p.Format(v), 64)
	return r
}

// Rewrite replaces the first declaration's literal with the clamped value.
// Everything else in src is kept as is. It returns the new source and the
// value actually written.
func (p *Parameter) Rewrite(src []byte, v float64) ([]byte, float64, error) {
	m, ok := p.Find(src)
	if !ok {
		return nil, 0, ErrNotFound
	}
	v, err := p.Quantize(v)
	if err != nil {
		return nil, 0, err
	}
	out := make([]byte, 0, len(src)+p.Precision)
	out = append(out, src[:m.Start]...)
	out = append(out, p.Format(v)...)
	out = append(out, src[m.End:]...)
	return out, v, nil
}

// Read loads the current value from the artifact at path.
func (p *Parameter) Read(path string) (float64, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("artifact %s: %w", path, err)
		}
		return 0, fmt.Errorf("failed to read artifact: %w", err)
	}
	m, ok := p.Find(src)
	if !ok {
		return 0, ErrNotFound
	}
	return m.Value, nil
}
