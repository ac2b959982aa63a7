package preprocess

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

const (
	bilateralDiameter = 9
	bilateralSigma    = 75.0
	claheClipLimit    = 2.0
	claheGrid         = 8
)

// Normalize prepares a cropped card image for recognition: luminance,
// bilateral denoise, CLAHE, Otsu binarization and a bounded deskew. The result
// has the input's dimensions and three equal channels. img is not modified.
func Normalize(img image.Image) *image.NRGBA {
	gray := Grayscale(img)
	smoothed := Bilateral(gray, bilateralDiameter, bilateralSigma, bilateralSigma)
	equalized := CLAHE(smoothed, claheClipLimit, claheGrid, claheGrid)
	binary, _ := Binarize(equalized)
	return imaging.Clone(Deskew(binary))
}

// Grayscale returns a single channel copy of img anchored at the origin.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < b.Dy(); y++ {
			src := g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):]
			copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], src[:b.Dx()])
		}
		return out
	}

	nrgba := imaging.Grayscale(img)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Stride+x] = nrgba.Pix[y*nrgba.Stride+x*4]
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// Bilateral smooths g with a circular window of the given diameter, weighting
// neighbours by both distance and intensity difference. Borders replicate.
// Like the other filters here it expects g anchored at the origin, as
// returned by Grayscale.
func Bilateral(g *image.Gray, diameter int, sigmaColor, sigmaSpace float64) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	radius := diameter / 2

	type tap struct {
		dx, dy int
		weight float64
	}
	var taps []tap
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d2 := float64(dx*dx + dy*dy)
			if d2 > float64(radius*radius) {
				continue
			}
			taps = append(taps, tap{dx: dx, dy: dy, weight: math.Exp(-d2 / (2 * sigmaSpace * sigmaSpace))})
		}
	}

	var colorWeight [256]float64
	for i := range colorWeight {
		colorWeight[i] = math.Exp(-float64(i*i) / (2 * sigmaColor * sigmaColor))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			center := int(g.Pix[y*g.Stride+x])
			var sum, norm float64
			for _, t := range taps {
				sx := clamp(x+t.dx, 0, w-1)
				sy := clamp(y+t.dy, 0, h-1)
				v := int(g.Pix[sy*g.Stride+sx])
				diff := v - center
				if diff < 0 {
					diff = -diff
				}
				wgt := t.weight * colorWeight[diff]
				sum += wgt * float64(v)
				norm += wgt
			}
			out.Pix[y*out.Stride+x] = clampByte(sum / norm)
		}
	}

	return out
}

// CLAHE equalizes g per tile with a clipped histogram and blends the tile
// lookup tables bilinearly.
func CLAHE(g *image.Gray, clipLimit float64, gridX, gridY int) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}

	tilesX := min(gridX, w)
	tilesY := min(gridY, h)
	tileW := (w + tilesX - 1) / tilesX
	tileH := (h + tilesY - 1) / tilesY
	area := tileW * tileH

	clip := max(int(clipLimit*float64(area)/256), 1)

	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			var hist [256]int
			for y := ty * tileH; y < (ty+1)*tileH; y++ {
				sy := clamp(y, 0, h-1)
				for x := tx * tileW; x < (tx+1)*tileW; x++ {
					sx := clamp(x, 0, w-1)
					hist[g.Pix[sy*g.Stride+sx]]++
				}
			}

			clipHistogram(&hist, clip)

			lut := &luts[ty*tilesX+tx]
			cdf := 0
			for i := 0; i < 256; i++ {
				cdf += hist[i]
				lut[i] = clampByte(float64(cdf) * 255 / float64(area))
			}
		}
	}

	invTileW := 1 / float64(tileW)
	invTileH := 1 / float64(tileH)
	for y := 0; y < h; y++ {
		tyf := float64(y)*invTileH - 0.5
		ty1 := int(math.Floor(tyf))
		ya := tyf - float64(ty1)
		ty2 := min(ty1+1, tilesY-1)
		ty1 = max(ty1, 0)

		for x := 0; x < w; x++ {
			txf := float64(x)*invTileW - 0.5
			tx1 := int(math.Floor(txf))
			xa := txf - float64(tx1)
			tx2 := min(tx1+1, tilesX-1)
			tx1 = max(tx1, 0)

			v := g.Pix[y*g.Stride+x]
			top := float64(luts[ty1*tilesX+tx1][v])*(1-xa) + float64(luts[ty1*tilesX+tx2][v])*xa
			bottom := float64(luts[ty2*tilesX+tx1][v])*(1-xa) + float64(luts[ty2*tilesX+tx2][v])*xa
			out.Pix[y*out.Stride+x] = clampByte(top*(1-ya) + bottom*ya)
		}
	}

	return out
}

// clipHistogram caps every bin at clip and spreads the excess evenly, the
// remainder going one count at a time to evenly spaced bins.
func clipHistogram(hist *[256]int, clip int) {
	excess := 0
	for i := range hist {
		if hist[i] > clip {
			excess += hist[i] - clip
			hist[i] = clip
		}
	}
	if excess == 0 {
		return
	}

	redist := excess / 256
	residual := excess - redist*256
	for i := range hist {
		hist[i] += redist
	}
	if residual > 0 {
		step := max(256/residual, 1)
		for i := 0; i < 256 && residual > 0; i += step {
			hist[i]++
			residual--
		}
	}
}

// OtsuThreshold picks the level that maximizes between-class variance.
func OtsuThreshold(g *image.Gray) uint8 {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	var hist [256]int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			hist[g.Pix[y*g.Stride+x]]++
		}
	}

	total := float64(w * h)
	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i * c)
	}

	var sumB, weightB, best float64
	threshold := 0
	for t := 0; t < 256; t++ {
		weightB += float64(hist[t])
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		meanB := sumB / weightB
		meanF := (sumAll - sumB) / weightF
		between := weightB * weightF * (meanB - meanF) * (meanB - meanF)
		if between > best {
			best = between
			threshold = t
		}
	}

	return uint8(threshold)
}

// Binarize maps pixels above the Otsu level to 255 and the rest to 0.
func Binarize(g *image.Gray) (*image.Gray, uint8) {
	threshold := OtsuThreshold(g)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if g.Pix[y*g.Stride+x] > threshold {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out, threshold
}
