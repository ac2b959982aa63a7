package entity

import "image"

// DetectionBox is one detector hit in coordinates normalized to the frame size.
type DetectionBox struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Score float64 `json:"score"`
}

func (b DetectionBox) ToPixel(frameW, frameH int) image.Rectangle {
	return image.Rect(
		int(b.X*float64(frameW)),
		int(b.Y*float64(frameH)),
		int((b.X+b.W)*float64(frameW)),
		int((b.Y+b.H)*float64(frameH)),
	)
}

type KTPDetectionResult struct {
	Boxes []DetectionBox `json:"boxes"`
	Error string         `json:"error,omitempty"`
}
