package evisync

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const (
	pi180    = math.Pi / 180.0
	pi180Rev = 180.0 / math.Pi
)

// degreesToRadians deg = r * pi / 180
func degreesToRadians(d float64) float64 {
	return d * pi180
}

// radiansTodegrees r = deg  * 180 / pi
func radiansTodegrees(d float64) float64 {
	return d * pi180Rev
}

// normalizeDegrees wraps angle into [0, 360)
func normalizeDegrees(angle float64) float64 {
	angle = math.Mod(angle, 360.0)
	if angle < 0 {
		angle += 360.0
	}
	return angle
}

// signedAngleDiff returns the rotation (degrees) needed to get from heading 'from' to heading 'to'.
// Result is in (-180, 180]
func signedAngleDiff(from, to float64) float64 {
	diff := normalizeDegrees(to - from)
	if diff > 180.0 {
		diff -= 360.0
	}
	return diff
}

// bearing returns compass bearing of vector p->q: 0 is +Y (north), 90 is +X (east)
//
// Note: returns 0 for degenerate segment
func bearing(p, q orb.Point) float64 {
	dx := q.X() - p.X()
	dy := q.Y() - p.Y()
	if dx == 0 && dy == 0 {
		return 0
	}
	return normalizeDegrees(radiansTodegrees(math.Atan2(dx, dy)))
}

// speedVector returns planar velocity for the given compass heading.
// The angle is shifted by -90 degrees first, then each component gets the sign of its quadrant
func speedVector(heading, speed float64) orb.Point {
	angleRad := degreesToRadians(normalizeDegrees(heading) - 90.0)
	speedX := math.Cos(angleRad) * speed
	speedY := math.Sin(angleRad) * speed
	if angleRad >= 0 && angleRad <= math.Pi {
		speedY = -math.Abs(speedY)
	} else {
		speedY = math.Abs(speedY)
	}
	if angleRad >= math.Pi/2 && angleRad <= 3*math.Pi/2 {
		speedX = -math.Abs(speedX)
	} else {
		speedX = math.Abs(speedX)
	}
	return orb.Point{speedX, speedY}
}

// lineLength returns planar length of the line
func lineLength(line orb.LineString) float64 {
	if len(line) < 2 {
		return 0
	}
	return planar.Length(line)
}

// translateLine returns new line shifted by -offset
func translateLine(line orb.LineString, offset orb.Point) orb.LineString {
	newLine := make(orb.LineString, len(line))
	for i, pt := range line {
		newLine[i] = orb.Point{pt.X() - offset.X(), pt.Y() - offset.Y()}
	}
	return newLine
}

// reverseLine reverses order of points in given line. Returns new slice
func reverseLine(pts orb.LineString) orb.LineString {
	inputLen := len(pts)
	output := make(orb.LineString, inputLen)
	for i, n := range pts {
		j := inputLen - i - 1
		output[j] = n
	}
	return output
}
