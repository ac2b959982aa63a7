package main

import (
	"bufio"
	"bytes"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"SentraKTP/pkg/ocr"

	"github.com/disintegration/imaging"
	"github.com/golang-jwt/jwt/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

type fixedRecognizer struct {
	texts  []string
	scores []float64
}

func (f fixedRecognizer) Name() string { return "fixed" }

func (f fixedRecognizer) Recognize(context.Context, image.Image) (*ocr.Output, error) {
	return &ocr.Output{Texts: f.texts, Scores: f.scores}, nil
}

func testCLI(r ocr.Recognizer) *cli {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &cli{
		log: logger,
		newRecognizer: func(context.Context, string) (ocr.Recognizer, error) {
			if r == nil {
				return nil, errors.New("no engine")
			}
			return r, nil
		},
	}
}

func run(t *testing.T, c *cli, stdin string, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"KTP_MIN_CONFIDENCE", "KTP_OCR_ENGINE", "KTP_EXTRACT_WORKERS", "KTP_EXTRACT_TIMEOUT", "KTP_PREPROCESS"} {
		t.Setenv(key, "")
	}

	var out bytes.Buffer
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	err := root.Execute()
	return out.String(), err
}

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := imaging.New(w, h, color.White)
	path := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(img, path))
	return path
}

type parsed struct {
	Data         map[string]interface{} `json:"data"`
	Completeness float64                `json:"completeness"`
}

func TestParseCmd_TextsAndScores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"texts": ["NIK : 3201014508900003", "Nama : SITI AMINAH", "Gol. Darah : O"],
		"scores": [0.9, 0.95, 0.4]
	}`), 0o644))

	out, err := run(t, testCLI(nil), "", "parse", path)
	require.NoError(t, err)

	var res parsed
	require.NoError(t, jsoniter.UnmarshalFromString(out, &res))
	assert.Equal(t, "3201014508900003", res.Data["nik"])
	assert.Equal(t, "Siti Aminah", res.Data["nama"])
	assert.Nil(t, res.Data["gol_darah"])
	assert.InDelta(t, 0.925, res.Data["confidence_avg"], 1e-9)
	assert.InDelta(t, 2.0/15, res.Completeness, 1e-9)
}

func TestParseCmd_TokensFromStdin(t *testing.T) {
	stdin := `{"tokens": [{"text": "Agama", "confidence": 0.9}, {"text": "KRISTEN", "confidence": 0.8}]}`

	out, err := run(t, testCLI(nil), stdin, "parse", "--min-confidence", "0.5", "-")
	require.NoError(t, err)

	var res parsed
	require.NoError(t, jsoniter.UnmarshalFromString(out, &res))
	assert.Equal(t, "KRISTEN", res.Data["agama"])
}

func TestParseCmd_BadInput(t *testing.T) {
	_, err := run(t, testCLI(nil), "not json", "parse", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode tokens")

	_, err = run(t, testCLI(nil), "", "parse", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestExtractCmd_Batch(t *testing.T) {
	dir := t.TempDir()
	first := writePNG(t, dir, "a.png", 80, 50)
	second := writePNG(t, dir, "b.png", 60, 40)
	broken := filepath.Join(dir, "c.png")
	require.NoError(t, os.WriteFile(broken, []byte("not an image"), 0o644))

	c := testCLI(fixedRecognizer{
		texts:  []string{"NIK : 3201014508900003", "Kewarganegaraan : WNI"},
		scores: []float64{0.9, 0.9},
	})

	out, err := run(t, c, "", "extract", "--workers", "2", "--no-preprocess", first, second, broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3")

	var lines []extractLine
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var line extractLine
		require.NoError(t, jsoniter.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 3)

	assert.Equal(t, "a.png", lines[0].File)
	assert.Equal(t, "b.png", lines[1].File)
	for _, line := range lines[:2] {
		assert.Empty(t, line.Error)
		require.NotNil(t, line.Data)
		assert.Equal(t, "3201014508900003", *line.Data.NIK)
		assert.InDelta(t, 2.0/15, line.Completeness, 1e-9)
	}

	assert.Equal(t, "c.png", lines[2].File)
	assert.Contains(t, lines[2].Error, "decode image")
	assert.Nil(t, lines[2].Data)
}

func TestExtractCmd_EngineUnavailable(t *testing.T) {
	path := writePNG(t, t.TempDir(), "a.png", 20, 20)

	_, err := run(t, testCLI(nil), "", "extract", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no engine")
}

func TestPreprocessCmd(t *testing.T) {
	dir := t.TempDir()
	in := writePNG(t, dir, "in.png", 90, 60)
	out := filepath.Join(dir, "out.png")

	_, err := run(t, testCLI(nil), "", "preprocess", in, out)
	require.NoError(t, err)

	img, err := imaging.Open(out)
	require.NoError(t, err)
	assert.Equal(t, 90, img.Bounds().Dx())
	assert.Equal(t, 60, img.Bounds().Dy())
}

func TestTokenCmd(t *testing.T) {
	t.Setenv("JWT_ACCESS_TOKEN_SECRET", "cli-secret")

	out, err := run(t, testCLI(nil), "", "token", "--id", "kiosk-9", "--name", "Lobby", "--ttl", "1h")
	require.NoError(t, err)

	var res struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   int64  `json:"expires_at"`
	}
	require.NoError(t, jsoniter.UnmarshalFromString(out, &res))
	assert.InDelta(t, time.Now().Add(time.Hour).Unix(), res.ExpiresAt, 5)

	token, err := jwt.Parse(res.AccessToken, func(*jwt.Token) (interface{}, error) {
		return []byte("cli-secret"), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "kiosk-9", claims["id"])
	assert.Equal(t, "Lobby", claims["name"])
}

func TestTokenCmd_Errors(t *testing.T) {
	t.Setenv("JWT_ACCESS_TOKEN_SECRET", "")

	_, err := run(t, testCLI(nil), "", "token", "--id", "kiosk-9", "--name", "Lobby")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sign token")

	_, err = run(t, testCLI(nil), "", "token", "--id", "kiosk-9")
	require.Error(t, err)

	t.Setenv("JWT_ACCESS_TOKEN_SECRET", "cli-secret")
	_, err = run(t, testCLI(nil), "", "token", "--id", "kiosk-9", "--name", "Lobby", "--ttl=-1h")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ttl must be positive")
}
