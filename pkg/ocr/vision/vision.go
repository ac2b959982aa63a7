package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"strings"

	"SentraKTP/pkg/ocr"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

var ErrEmptyResponse = errors.New("no response from Vision API")

type recognizer struct {
	client *vision.ImageAnnotatorClient
}

// New creates a Cloud Vision recognizer. Credentials come from
// GOOGLE_CREDENTIALS (inline JSON), GOOGLE_APPLICATION_CREDENTIALS (file) or
// the default credential chain.
func New(ctx context.Context) (ocr.Recognizer, error) {
	var opts []option.ClientOption
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		opts = append(opts, option.WithCredentialsFile(credFile))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vision client: %w", err)
	}

	return &recognizer{client: client}, nil
}

func (r *recognizer) Name() string { return "vision" }

func (r *recognizer) Recognize(ctx context.Context, img image.Image) (*ocr.Output, error) {
	data, err := ocr.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	resp, err := r.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: data},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{LanguageHints: []string{"id"}},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vision API call failed: %w", err)
	}

	if len(resp.Responses) == 0 {
		return nil, ErrEmptyResponse
	}

	annotation := resp.Responses[0]
	if annotation.Error != nil {
		return nil, fmt.Errorf("vision API error: %s", annotation.Error.Message)
	}

	return linesFromAnnotation(annotation.FullTextAnnotation), nil
}

type line struct {
	text       strings.Builder
	confidence float32
	symbols    int
}

// linesFromAnnotation rebuilds text lines from the symbol break markers and
// scores each line by the mean confidence of its words.
func linesFromAnnotation(full *visionpb.TextAnnotation) *ocr.Output {
	out := &ocr.Output{Texts: []string{}, Scores: []float64{}}
	if full == nil {
		return out
	}

	var current line
	var words int
	flush := func() {
		text := strings.TrimSpace(current.text.String())
		if text != "" && words > 0 {
			out.Texts = append(out.Texts, text)
			out.Scores = append(out.Scores, float64(current.confidence/float32(words)))
		}
		current = line{}
		words = 0
	}

	for _, page := range full.Pages {
		for _, block := range page.Blocks {
			for _, paragraph := range block.Paragraphs {
				for _, word := range paragraph.Words {
					current.confidence += word.Confidence
					words++
					for _, symbol := range word.Symbols {
						current.text.WriteString(symbol.Text)
						switch detectedBreak(symbol) {
						case visionpb.TextAnnotation_DetectedBreak_SPACE, visionpb.TextAnnotation_DetectedBreak_SURE_SPACE:
							current.text.WriteByte(' ')
						case visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE, visionpb.TextAnnotation_DetectedBreak_LINE_BREAK:
							flush()
						}
					}
				}
			}
			flush()
		}
	}

	return out
}

func detectedBreak(symbol *visionpb.Symbol) visionpb.TextAnnotation_DetectedBreak_BreakType {
	if symbol.Property == nil || symbol.Property.DetectedBreak == nil {
		return visionpb.TextAnnotation_DetectedBreak_UNKNOWN
	}
	return symbol.Property.DetectedBreak.Type
}

func (r *recognizer) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
