package detector

import (
	"context"
	"image"
	"sort"
	"strings"

	"SentraKTP/internal/entity"

	"github.com/disintegration/imaging"
)

const (
	CardLabel      = "id card"
	DefaultPadding = 0.02
)

// Detector locates identity cards in an encoded video frame.
type Detector interface {
	Detect(ctx context.Context, frame []byte) ([]entity.DetectionBox, error)
}

// CardBoxes keeps the boxes labelled as an identity card, best score first.
func CardBoxes(boxes []entity.DetectionBox) []entity.DetectionBox {
	var cards []entity.DetectionBox
	for _, b := range boxes {
		if strings.EqualFold(strings.TrimSpace(b.Label), CardLabel) {
			cards = append(cards, b)
		}
	}
	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].Score > cards[j].Score
	})
	return cards
}

// SelectCard returns the highest scoring card box.
func SelectCard(boxes []entity.DetectionBox) (entity.DetectionBox, bool) {
	cards := CardBoxes(boxes)
	if len(cards) == 0 {
		return entity.DetectionBox{}, false
	}
	return cards[0], true
}

// Crop cuts box out of img, grown by padding (a fraction of the frame) on
// every side and clamped to the frame. An empty region yields img itself.
func Crop(img image.Image, box entity.DetectionBox, padding float64) image.Image {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	x1 := max(0, int((box.X-padding)*w))
	y1 := max(0, int((box.Y-padding)*h))
	x2 := min(b.Dx(), int((box.X+box.W+padding)*w))
	y2 := min(b.Dy(), int((box.Y+box.H+padding)*h))

	if x2 <= x1 || y2 <= y1 {
		return img
	}

	return imaging.Crop(img, image.Rect(b.Min.X+x1, b.Min.Y+y1, b.Min.X+x2, b.Min.Y+y2))
}
