package rekognition

import (
	"context"
	"fmt"
	"image"
	"os"

	"SentraKTP/pkg/ocr"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/rekognition"
)

type recognizer struct {
	client *rekognition.Rekognition
}

func New() (ocr.Recognizer, error) {
	sess, err := newSession()
	if err != nil {
		return nil, err
	}

	return &recognizer{
		client: rekognition.New(sess),
	}, nil
}

func (r *recognizer) Name() string { return "rekognition" }

// Recognize reports LINE detections only. Rekognition also returns every
// WORD of those lines, which would duplicate tokens.
func (r *recognizer) Recognize(ctx context.Context, img image.Image) (*ocr.Output, error) {
	data, err := ocr.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	resp, err := r.client.DetectTextWithContext(ctx, &rekognition.DetectTextInput{
		Image: &rekognition.Image{Bytes: data},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call AWS rekognition: %w", err)
	}

	return linesFromDetections(resp.TextDetections), nil
}

func linesFromDetections(detections []*rekognition.TextDetection) *ocr.Output {
	out := &ocr.Output{Texts: []string{}, Scores: []float64{}}
	for _, d := range detections {
		if aws.StringValue(d.Type) != rekognition.TextTypesLine {
			continue
		}
		out.Texts = append(out.Texts, aws.StringValue(d.DetectedText))
		out.Scores = append(out.Scores, aws.Float64Value(d.Confidence)/100.0)
	}
	return out
}

func newSession() (*session.Session, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(os.Getenv("AWS_REGION")),
		Credentials: credentials.NewStaticCredentials(
			os.Getenv("AWS_ACCESS_KEY_ID"),
			os.Getenv("AWS_SECRET_ACCESS_KEY"),
			"",
		),
	})

	if err != nil {
		return nil, err
	}

	return sess, nil
}
