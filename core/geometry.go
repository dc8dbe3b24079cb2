package core

import "math"

// Point is an integer map coordinate.
type Point struct {
	X, Y int
}

// DistanceTo returns the straight-line distance between two points in map
// units.
func (p Point) DistanceTo(other Point) float64 {
	dx := float64(p.X - other.X)
	dy := float64(p.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Displace moves p by dist map units along heading (radians, 0 = +X axis,
// counter-clockwise). The result is truncated toward zero, not rounded.
func (p Point) Displace(heading, dist float64) Point {
	return Point{
		X: int(float64(p.X) + dist*math.Cos(heading)),
		Y: int(float64(p.Y) + dist*math.Sin(heading)),
	}
}

// Bounds is an inclusive rectangle [0, Width] x [0, Height].
type Bounds struct {
	Width  int
	Height int
}

// Contains reports whether p lies within the inclusive bounds.
func (b Bounds) Contains(p Point) bool {
	return p.X >= 0 && p.X <= b.Width && p.Y >= 0 && p.Y <= b.Height
}

// Clamp pulls p into the bounds on each axis independently.
func (b Bounds) Clamp(p Point) Point {
	return Point{X: clampInt(p.X, 0, b.Width), Y: clampInt(p.Y, 0, b.Height)}
}

// Intersect returns the bounds covered by both b and other.
func (b Bounds) Intersect(other Bounds) Bounds {
	return Bounds{Width: min(b.Width, other.Width), Height: min(b.Height, other.Height)}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
