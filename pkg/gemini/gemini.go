package gemini

import (
	"context"
	"errors"
	"image"
	"os"
	"strings"

	"SentraKTP/pkg/ocr"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const transcribePrompt = `Transcribe every line of text printed on this Indonesian KTP exactly as printed.
Output one line of the card per line of output, top to bottom, without commentary or formatting.`

type IGemini interface {
	ocr.Recognizer
	Close()
}

type geminiClient struct {
	apiKey    string
	modelName string
	client    *genai.Client
}

// NewGeminiClient returns a recognizer that asks the model to transcribe the
// card. The model gives no per-line confidence so Output.Scores is nil.
func NewGeminiClient() (IGemini, error) {

	apiKey := os.Getenv("GEMINI_API_KEY")

	modelName := os.Getenv("GEMINI_MODEL_NAME")
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &geminiClient{
		apiKey:    apiKey,
		modelName: modelName,
		client:    client,
	}, nil
}

func (g *geminiClient) Name() string { return "gemini" }

func (g *geminiClient) Recognize(ctx context.Context, img image.Image) (*ocr.Output, error) {
	imgData, err := ocr.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0)

	res, err := model.GenerateContent(ctx, genai.Text(transcribePrompt), genai.ImageData("png", imgData))
	if err != nil {
		return nil, err
	}

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("no response from Gemini API")
	}

	text, ok := res.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, errors.New("unexpected response format from Gemini API")
	}

	return &ocr.Output{Texts: splitLines(string(text))}, nil
}

func splitLines(text string) []string {
	lines := []string{}
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(strings.Trim(l, "`*"))
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func (g *geminiClient) Close() {
	if g.client != nil {
		g.client.Close()
	}
}
