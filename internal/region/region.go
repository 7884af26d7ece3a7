// Package region answers "which players are inside these boxes, and what is
// their attribute X" by driving Scarpet commands through the query bridge.
package region

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
)

var (
	// ErrInvalidSpec reports a malformed region specification.
	ErrInvalidSpec = errors.New("invalid region spec")
	// ErrInvalidAttribute reports an empty or unsafe attribute name.
	ErrInvalidAttribute = errors.New("invalid attribute")
)

var (
	dimensionRe = regexp.MustCompile(`^[a-z0-9_.-]+(:[a-z0-9_./-]+)?$`)
	attributeRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	playerRe    = regexp.MustCompile(`^[A-Za-z0-9_]{1,16}$`)
)

// Box is an axis-aligned bounding box. Bounds are inclusive and may be given
// in either order per axis.
type Box struct {
	X1 float64 `json:"x1" toml:"x1"`
	Y1 float64 `json:"y1" toml:"y1"`
	Z1 float64 `json:"z1" toml:"z1"`
	X2 float64 `json:"x2" toml:"x2"`
	Y2 float64 `json:"y2" toml:"y2"`
	Z2 float64 `json:"z2" toml:"z2"`
}

// Normalize returns the box with X1<=X2, Y1<=Y2 and Z1<=Z2.
func (b Box) Normalize() Box {
	return Box{
		X1: math.Min(b.X1, b.X2), X2: math.Max(b.X1, b.X2),
		Y1: math.Min(b.Y1, b.Y2), Y2: math.Max(b.Y1, b.Y2),
		Z1: math.Min(b.Z1, b.Z2), Z2: math.Max(b.Z1, b.Z2),
	}
}

func (b Box) finite() bool {
	for _, v := range []float64{b.X1, b.Y1, b.Z1, b.X2, b.Y2, b.Z2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Spec maps a dimension id (e.g. "minecraft:overworld") to its boxes.
type Spec map[string][]Box

// Validate checks dimension ids and bounds.
func (s Spec) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no dimensions", ErrInvalidSpec)
	}
	for dim, boxes := range s {
		if !dimensionRe.MatchString(dim) {
			return fmt.Errorf("%w: bad dimension %q", ErrInvalidSpec, dim)
		}
		if len(boxes) == 0 {
			return fmt.Errorf("%w: dimension %q has no boxes", ErrInvalidSpec, dim)
		}
		for i, b := range boxes {
			if !b.finite() {
				return fmt.Errorf("%w: dimension %q box %d has a non-finite bound", ErrInvalidSpec, dim, i)
			}
		}
	}
	return nil
}

// Dimensions returns the dimension ids in sorted order.
func (s Spec) Dimensions() []string {
	dims := make([]string, 0, len(s))
	for dim := range s {
		dims = append(dims, dim)
	}
	sort.Strings(dims)
	return dims
}

// ValidateAttribute checks that attr is a plain entity query name.
func ValidateAttribute(attr string) error {
	if !attributeRe.MatchString(attr) {
		return fmt.Errorf("%w: %q", ErrInvalidAttribute, attr)
	}
	return nil
}

// ValidPlayerName reports whether name is a valid player name.
func ValidPlayerName(name string) bool {
	return playerRe.MatchString(name)
}
