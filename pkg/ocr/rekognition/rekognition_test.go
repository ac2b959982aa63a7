package rekognition

import (
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/rekognition"
	"github.com/stretchr/testify/assert"
)

func TestLinesFromDetections(t *testing.T) {
	out := linesFromDetections([]*rekognition.TextDetection{
		{Type: aws.String(rekognition.TextTypesLine), DetectedText: aws.String("PROVINSI JAWA BARAT"), Confidence: aws.Float64(99)},
		{Type: aws.String(rekognition.TextTypesWord), DetectedText: aws.String("PROVINSI"), Confidence: aws.Float64(99)},
		{Type: aws.String(rekognition.TextTypesLine), DetectedText: aws.String("NIK : 3201014508900003"), Confidence: aws.Float64(80)},
	})

	assert.Equal(t, []string{"PROVINSI JAWA BARAT", "NIK : 3201014508900003"}, out.Texts)
	assert.InDeltaSlice(t, []float64{0.99, 0.8}, out.Scores, 1e-9)
}

func TestLinesFromDetections_None(t *testing.T) {
	out := linesFromDetections(nil)

	assert.Empty(t, out.Texts)
	assert.Empty(t, out.Scores)
}
