package tesseract

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"

	"SentraKTP/pkg/ocr"

	"github.com/otiai10/gosseract/v2"
)

type recognizer struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// New returns a Tesseract recognizer reporting one token per text line.
// Languages come from TESSERACT_LANGUAGES (comma separated, default "ind").
func New() ocr.Recognizer {
	languages := []string{"ind"}
	if env := os.Getenv("TESSERACT_LANGUAGES"); env != "" {
		languages = strings.Split(env, ",")
	}

	return &recognizer{
		languages:     languages,
		clientFactory: gosseract.NewClient,
	}
}

func (r *recognizer) Name() string { return "tesseract" }

func (r *recognizer) Recognize(ctx context.Context, img image.Image) (*ocr.Output, error) {
	data, err := ocr.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	c := r.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(r.languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		return nil, fmt.Errorf("set page seg mode: %w", err)
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize lines: %w", err)
	}

	return linesFromBoxes(boxes), nil
}

// linesFromBoxes keeps non-blank lines and scales Tesseract's 0-100
// confidence to [0, 1].
func linesFromBoxes(boxes []gosseract.BoundingBox) *ocr.Output {
	out := &ocr.Output{
		Texts:  make([]string, 0, len(boxes)),
		Scores: make([]float64, 0, len(boxes)),
	}
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		out.Texts = append(out.Texts, text)
		out.Scores = append(out.Scores, b.Confidence/100.0)
	}
	return out
}
