package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
)

// Output is what a recognition engine reports for one image, one entry per
// detected text region in engine order. A nil Scores means the engine does
// not produce confidences.
type Output struct {
	Texts  []string
	Scores []float64
}

type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, img image.Image) (*Output, error)
}

// OCRPredictError is returned when the recognition engine could not produce
// a result. It is the only fatal error of an extraction.
type OCRPredictError struct {
	Engine string
	Err    error
}

func (e *OCRPredictError) Error() string {
	return fmt.Sprintf("ocr predict failed (%s): %v", e.Engine, e.Err)
}

func (e *OCRPredictError) Unwrap() error {
	return e.Err
}

var ErrNilRecognizer = errors.New("no recognizer configured")

type result struct {
	out *Output
	err error
}

// Invoke calls the engine once and normalizes its output into parallel text
// and score slices. Empty output yields two empty slices. When the engine
// reports scores of a different length than texts, both are cut to the
// shorter one. A nil score slice is returned when the engine has no scores.
func Invoke(ctx context.Context, r Recognizer, img image.Image) ([]string, []float64, error) {
	if r == nil {
		return nil, nil, &OCRPredictError{Engine: "none", Err: ErrNilRecognizer}
	}

	done := make(chan result, 1)
	go func() {
		out, err := r.Recognize(ctx, img)
		done <- result{out: out, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, nil, &OCRPredictError{Engine: r.Name(), Err: ctx.Err()}
	case res = <-done:
	}

	if res.err != nil {
		return nil, nil, &OCRPredictError{Engine: r.Name(), Err: res.err}
	}

	if res.out == nil || len(res.out.Texts) == 0 {
		return []string{}, []float64{}, nil
	}

	texts := res.out.Texts
	if res.out.Scores == nil {
		return texts, nil, nil
	}

	scores := res.out.Scores
	n := min(len(texts), len(scores))
	return texts[:n], scores[:n], nil
}

type synchronized struct {
	mu sync.Mutex
	r  Recognizer
}

// Synchronized serializes calls to an engine handle that is not safe for
// concurrent use.
func Synchronized(r Recognizer) Recognizer {
	return &synchronized{r: r}
}

func (s *synchronized) Name() string {
	return s.r.Name()
}

func (s *synchronized) Recognize(ctx context.Context, img image.Image) (*Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.r.Recognize(ctx, img)
}

// EncodePNG serializes img for engines that take encoded bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
