package ktp

import (
	"fmt"
	"math"
)

// DefaultMinConfidence is the score below which tokens are discarded.
const DefaultMinConfidence = 0.65

type Parser struct {
	minConfidence float64
}

type ParserOption func(*Parser)

func WithMinConfidence(minConfidence float64) ParserOption {
	return func(p *Parser) {
		p.minConfidence = minConfidence
	}
}

func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{minConfidence: DefaultMinConfidence}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Parser) MinConfidence() float64 {
	return p.minConfidence
}

// Parse builds a record from parallel text and score slices as returned by
// the OCR adapter. Scores are treated as absent when empty or when their
// length differs from texts.
func (p *Parser) Parse(texts []string, scores []float64) *Record {
	record := NewRecord()

	tokens, ok := p.filter(record, texts, scores)
	if !ok {
		return record
	}

	p.scan(record, tokens)
	Validate(record)

	return record
}

// ParseTokens is Parse for callers holding Token values.
func (p *Parser) ParseTokens(tokens []Token) *Record {
	texts := make([]string, len(tokens))
	scores := make([]float64, len(tokens))
	for i, t := range tokens {
		texts[i] = t.Text
		scores[i] = t.Confidence
	}
	return p.Parse(texts, scores)
}

func (p *Parser) filter(record *Record, texts []string, scores []float64) ([]Token, bool) {
	if len(scores) == 0 || len(scores) != len(texts) {
		record.ConfidenceAvg = NoConfidence
		tokens := make([]Token, len(texts))
		for i, text := range texts {
			tokens[i] = Token{Text: FoldText(text), Confidence: NoConfidence}
		}
		return tokens, true
	}

	tokens := make([]Token, 0, len(texts))
	var sum float64
	for i, text := range texts {
		score := scores[i]
		if math.IsNaN(score) || score < p.minConfidence {
			continue
		}
		score = math.Min(math.Max(score, 0), 1)
		tokens = append(tokens, Token{Text: FoldText(text), Confidence: score})
		sum += score
	}

	if len(tokens) == 0 {
		record.warn(fmt.Sprintf("all OCR scores below threshold %.2f", p.minConfidence))
		return nil, false
	}

	record.ConfidenceAvg = sum / float64(len(tokens))
	return tokens, true
}

func (p *Parser) scan(record *Record, tokens []Token) {
	rules := Rules()

	for i := range tokens {
		if record.Resolved() == len(AllFields) {
			return
		}

		for _, fr := range rules {
			if resolved(record, fr) {
				continue
			}
			apply(record, fr, tokens, i)
		}
	}
}

func resolved(record *Record, fr *FieldRule) bool {
	for _, f := range fr.Fields {
		if !record.Has(f) {
			return false
		}
	}
	return true
}

func apply(record *Record, fr *FieldRule, tokens []Token, i int) {
	switch fr.Strategy {
	case ValueScan:
		assign(record, fr, fr.Normalize(fr.Extract(tokens, i)))

	case LabelTriggered:
		if !fr.Triggered(tokens[i].Text) {
			if fr.ScanUnlabeled {
				assign(record, fr, fr.Normalize(tokens[i].Text))
			}
			return
		}

		raw := fr.Extract(tokens, i)
		if raw == "" {
			record.warn(fmt.Sprintf("[%d] label for %s found but value is empty", i, fr.Name))
			return
		}

		if !assign(record, fr, fr.Normalize(raw)) {
			record.warn(fmt.Sprintf("[%d] value %q for %s not recognized", i, raw, fr.Name))
		}
	}
}

// assign stores every normalized value whose field is still unresolved and
// reports whether anything was stored.
func assign(record *Record, fr *FieldRule, values []string) bool {
	stored := false
	for k, f := range fr.Fields {
		if k >= len(values) || values[k] == "" || record.Has(f) {
			continue
		}
		record.set(f, values[k])
		stored = true
	}
	return stored
}
