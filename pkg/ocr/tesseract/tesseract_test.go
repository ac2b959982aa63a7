package tesseract

import (
	"testing"

	"github.com/otiai10/gosseract/v2"
	"github.com/stretchr/testify/assert"
)

func TestLinesFromBoxes(t *testing.T) {
	out := linesFromBoxes([]gosseract.BoundingBox{
		{Word: " NIK : 3201014508900003 \n", Confidence: 91},
		{Word: "   ", Confidence: 12},
		{Word: "Nama : SITI", Confidence: 75.5},
	})

	assert.Equal(t, []string{"NIK : 3201014508900003", "Nama : SITI"}, out.Texts)
	assert.InDeltaSlice(t, []float64{0.91, 0.755}, out.Scores, 1e-9)
}

func TestLinesFromBoxes_Empty(t *testing.T) {
	out := linesFromBoxes(nil)

	assert.Empty(t, out.Texts)
	assert.NotNil(t, out.Scores)
}

func TestNew_Languages(t *testing.T) {
	t.Setenv("TESSERACT_LANGUAGES", "ind,eng")

	r := New().(*recognizer)
	assert.Equal(t, []string{"ind", "eng"}, r.languages)
	assert.Equal(t, "tesseract", r.Name())
}
