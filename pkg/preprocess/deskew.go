package preprocess

import (
	"image"
	"math"
	"sort"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

const (
	minSkewPixels = 100
	minSkewAngle  = 0.5
	maxSkewAngle  = 10.0
)

type point struct {
	x, y float64
}

// foreground returns the boundary pixels of the minority class of a binary
// image, which is the ink on a light card and the background on a dark one.
// Only the leftmost and rightmost pixel of each row are kept; they span the
// same convex hull as the full set.
func foreground(g *image.Gray) ([]point, int) {
	w, h := g.Rect.Dx(), g.Rect.Dy()

	dark := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if g.Pix[y*g.Stride+x] == 0 {
				dark++
			}
		}
	}
	ink := func(v uint8) bool { return v == 0 }
	count := dark
	if dark*2 > w*h {
		ink = func(v uint8) bool { return v != 0 }
		count = w*h - dark
	}

	var pts []point
	for y := 0; y < h; y++ {
		left, right := -1, -1
		for x := 0; x < w; x++ {
			if ink(g.Pix[y*g.Stride+x]) {
				if left < 0 {
					left = x
				}
				right = x
			}
		}
		if left < 0 {
			continue
		}
		pts = append(pts, point{float64(left), float64(y)})
		if right != left {
			pts = append(pts, point{float64(right), float64(y)})
		}
	}

	return pts, count
}

func cross(o, a, b point) float64 {
	return (a.x-o.x)*(b.y-o.y) - (a.y-o.y)*(b.x-o.x)
}

// convexHull is Andrew's monotone chain, counter-clockwise without repeats.
func convexHull(pts []point) []point {
	if len(pts) < 3 {
		return pts
	}

	sorted := make([]point, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].x != sorted[j].x {
			return sorted[i].x < sorted[j].x
		}
		return sorted[i].y < sorted[j].y
	})

	hull := make([]point, 0, 2*len(sorted))
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	return hull[:len(hull)-1]
}

// minAreaAngle returns the orientation in degrees of the smallest rectangle
// enclosing hull. One side of that rectangle is collinear with a hull edge.
func minAreaAngle(hull []point) float64 {
	switch len(hull) {
	case 0, 1:
		return 0
	case 2:
		return math.Atan2(hull[1].y-hull[0].y, hull[1].x-hull[0].x) * 180 / math.Pi
	}

	bestArea := math.Inf(1)
	bestAngle := 0.0
	for i := range hull {
		a, b := hull[i], hull[(i+1)%len(hull)]
		theta := math.Atan2(b.y-a.y, b.x-a.x)
		if b.y == a.y && b.x == a.x {
			continue
		}
		cos, sin := math.Cos(theta), math.Sin(theta)

		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			u := p.x*cos + p.y*sin
			v := -p.x*sin + p.y*cos
			minU, maxU = math.Min(minU, u), math.Max(maxU, u)
			minV, maxV = math.Min(minV, v), math.Max(maxV, v)
		}

		if area := (maxU - minU) * (maxV - minV); area < bestArea {
			bestArea = area
			bestAngle = theta * 180 / math.Pi
		}
	}

	return bestAngle
}

// normalizeAngle folds a rectangle orientation into (-45, 45].
func normalizeAngle(deg float64) float64 {
	a := math.Mod(deg, 90)
	if a < 0 {
		a += 90
	}
	if a > 45 {
		a -= 90
	}
	return a
}

// EstimateSkew returns the tilt in degrees of the foreground of a binary
// image, positive when text runs downhill to the right. ok is false when there
// are too few foreground pixels to tell.
func EstimateSkew(g *image.Gray) (angle float64, ok bool) {
	pts, count := foreground(g)
	if count < minSkewPixels {
		return 0, false
	}
	return normalizeAngle(minAreaAngle(convexHull(pts))), true
}

// Deskew levels g when its estimated tilt lies strictly between 0.5 and 10
// degrees. Otherwise g is returned unchanged.
func Deskew(g *image.Gray) *image.Gray {
	angle, ok := EstimateSkew(g)
	if !ok || math.Abs(angle) <= minSkewAngle || math.Abs(angle) >= maxSkewAngle {
		return g
	}
	return rotate(g, angle)
}

// rotate turns g by -deg about its center with Catmull-Rom sampling. The
// source is padded by edge replication so every destination pixel samples
// real data.
func rotate(g *image.Gray, deg float64) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	margin := int(math.Ceil(float64(max(w, h))*math.Sin(maxSkewAngle*math.Pi/180))) + 2
	padded := padReplicate(g, margin)

	theta := deg * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)
	cx, cy := float64(w)/2, float64(h)/2
	m := float64(margin)

	// dst = R(-theta) * (src' - margin - c) + c
	s2d := f64.Aff3{
		cos, sin, cx - (cos*(cx+m) + sin*(cy+m)),
		-sin, cos, cy - (-sin*(cx+m) + cos*(cy+m)),
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	draw.CatmullRom.Transform(out, s2d, padded, padded.Bounds(), draw.Src, nil)
	return out
}

func padReplicate(g *image.Gray, margin int) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w+2*margin, h+2*margin))
	for y := 0; y < h+2*margin; y++ {
		sy := clamp(y-margin, 0, h-1)
		for x := 0; x < w+2*margin; x++ {
			sx := clamp(x-margin, 0, w-1)
			out.Pix[y*out.Stride+x] = g.Pix[sy*g.Stride+sx]
		}
	}
	return out
}
