// Package geometry computes the parametric transport curve a carrier
// follows between a producer pad and the depot hub, and its arc length.
package geometry

import "math"

// Vec3 is a point in world space. Y is up.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Dist(o Vec3) float64 {
	d := v.Sub(o)
	return math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}

// lengthSamples is the number of uniform parameter steps used to
// approximate arc length. Fixed so lengths are reproducible.
const lengthSamples = 128

// Arc is a cubic Bézier curve from Start to End. The two control points
// sit at 30% and 70% of the horizontal displacement, both raised to the
// higher endpoint plus Altitude, which flattens the middle of the arc
// into a cruise section instead of a parabolic peak.
type Arc struct {
	Start Vec3
	End   Vec3

	c1 Vec3
	c2 Vec3
}

// NewArc builds the transport curve for the given endpoints and altitude.
func NewArc(start, end Vec3, altitude float64) Arc {
	cruiseY := math.Max(start.Y, end.Y) + altitude
	flat := end.Sub(start)
	flat.Y = 0

	c1 := start.Add(flat.Scale(0.3))
	c1.Y = cruiseY
	c2 := start.Add(flat.Scale(0.7))
	c2.Y = cruiseY

	return Arc{Start: start, End: end, c1: c1, c2: c2}
}

// Point evaluates the curve at t in [0,1]. t is clamped.
func (a Arc) Point(t float64) Vec3 {
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	u := 1 - t
	// B(t) = u³P0 + 3u²t C1 + 3ut² C2 + t³P1
	p := a.Start.Scale(u * u * u)
	p = p.Add(a.c1.Scale(3 * u * u * t))
	p = p.Add(a.c2.Scale(3 * u * t * t))
	p = p.Add(a.End.Scale(t * t * t))
	return p
}

// Length approximates the arc length by summing chord lengths over
// lengthSamples uniform steps. A closed form for cubic Béziers does not
// exist; this resolution is plenty for spacing carriers.
func (a Arc) Length() float64 {
	total := 0.0
	prev := a.Start
	for i := 1; i <= lengthSamples; i++ {
		t := float64(i) / lengthSamples
		p := a.Point(t)
		total += prev.Dist(p)
		prev = p
	}
	return total
}
