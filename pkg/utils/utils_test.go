package utils

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"mime/multipart"
	"net/textproto"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestNewULIDFromTimestamp(t *testing.T) {
	now := time.Now()
	id, err := New().NewULIDFromTimestamp(now)

	require.NoError(t, err)
	parsed, err := ulid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(now), parsed.Time())
}

func TestValidateImageFile(t *testing.T) {
	u := New()

	header := func(contentType string, size int64) *multipart.FileHeader {
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", contentType)
		return &multipart.FileHeader{Filename: "ktp.png", Header: h, Size: size}
	}

	assert.ErrorIs(t, u.ValidateImageFile(nil), ErrNoFile)
	assert.ErrorIs(t, u.ValidateImageFile(header("image/png", 10*1024*1024)), ErrFileTooLarge)
	assert.ErrorIs(t, u.ValidateImageFile(header("application/pdf", 100)), ErrNotImage)
	assert.NoError(t, u.ValidateImageFile(header("image/jpeg", 100)))
}

func TestDecodeBase64Image(t *testing.T) {
	u := New()
	raw := pngBytes(t, 4, 4)
	encoded := base64.StdEncoding.EncodeToString(raw)

	got, err := u.DecodeBase64Image(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = u.DecodeBase64Image("data:image/png;base64," + encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = u.DecodeBase64Image("   ")
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = u.DecodeBase64Image("not base64!!")
	assert.Error(t, err)
}

func TestDecodeImage(t *testing.T) {
	u := New()

	img, err := u.DecodeImage(pngBytes(t, 6, 3))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(6, 3), img.Bounds().Size())

	_, err = u.DecodeImage([]byte("garbage"))
	assert.Error(t, err)

	_, err = u.DecodeImage(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestFitForOCR(t *testing.T) {
	u := New()
	img := image.NewGray(image.Rect(0, 0, 400, 200))

	assert.Same(t, img, u.FitForOCR(img, 500))
	assert.Same(t, img, u.FitForOCR(img, 0))

	fitted := u.FitForOCR(img, 100)
	assert.Equal(t, image.Pt(100, 50), fitted.Bounds().Size())
}
