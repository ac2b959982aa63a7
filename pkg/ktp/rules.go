package ktp

import (
	"regexp"
	"strings"
	"sync"
)

// Token is one recognized text region with the engine's confidence in [0,1].
type Token struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Strategy selects how a rule associates a token with its fields.
type Strategy int

const (
	// ValueScan rules test the token text directly against a value pattern.
	ValueScan Strategy = iota
	// LabelTriggered rules fire on a label keyword and read the value inline
	// or from the following tokens.
	LabelTriggered
)

// lookaheadWindow is how many token positions after a bare label are searched
// for its value.
const lookaheadWindow = 2

// ValueExtractor returns the raw value of a rule for the token at index i. An
// empty string means no value was found.
type ValueExtractor func(tokens []Token, i int) string

// Normalizer maps a raw value onto one canonical value per rule field. An
// empty string leaves the field unresolved.
type Normalizer func(raw string) []string

// FieldRule binds one or more canonical fields to a trigger, a value
// extractor and a normalizer. Rules are never mutated after the registry is
// published.
type FieldRule struct {
	Name      string
	Fields    []Field
	Strategy  Strategy
	Trigger   *regexp.Regexp
	Extract   ValueExtractor
	Normalize Normalizer

	// ScanUnlabeled lets a label-triggered rule also test tokens that do not
	// carry its label.
	ScanUnlabeled bool
}

// Triggered reports whether text carries the rule's label.
func (fr *FieldRule) Triggered(text string) bool {
	return fr.Trigger != nil && fr.Trigger.MatchString(text)
}

var (
	registry     []*FieldRule
	labelOnly    []*regexp.Regexp
	registryOnce sync.Once
)

// Rules returns the process-wide rule table in priority order.
func Rules() []*FieldRule {
	registryOnce.Do(buildRegistry)
	return registry
}

func buildRegistry() {
	labelOnly = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\s*nik\b`),
		regexp.MustCompile(`(?i)^\s*jenis\s*kelamin\b`),
		regexp.MustCompile(`(?i)^\s*status(\s*perkawinan)?\b`),
	}

	registry = []*FieldRule{
		valueScan("nik", normalizeNIK, FieldNIK),
		labeled("nama", `(?i)\bnama\b`, normalizeName, FieldNama),
		labeled("tempat_tgl_lahir",
			`(?i)\b(tempat\s*[/.,]?\s*)?((tgl|tanggal)\.?\s*)?lahir\b|\btempat\b|\btgl\b|\btanggal\b`,
			normalizeBirth, FieldTempatLahir, FieldTglLahir),
		valueScan("jenis_kelamin", normalizeGender, FieldJenisKelamin),
		labeled("gol_darah", `(?i)\bgol(ongan)?\.?\s*(darah)?\b`, normalizeBlood, FieldGolDarah),
		labeled("alamat", `(?i)^\s*alamat\b`, normalizeTitle, FieldAlamat),
		labeled("rt_rw", `(?i)\brt\s*/?\s*rw\b`, normalizeRTRW, FieldRTRW),
		labeled("kelurahan", `(?i)^\s*(kel(urahan)?\s*/?\s*(desa)?|desa)\b`, normalizeTitle, FieldKelurahan),
		labeled("kecamatan", `(?i)^\s*kecamatan\b`, normalizeTitle, FieldKecamatan),
		// Religion names are distinctive enough that unlabeled tokens are
		// scanned too. This is a heuristic: a free-text value such as an
		// address containing "ISLAM" would also match.
		withUnlabeledScan(labeled("agama", `(?i)^\s*agama\b`, normalizeReligion, FieldAgama)),
		valueScan("status_perkawinan", normalizeMarital, FieldStatusPerkawinan),
		labeled("pekerjaan", `(?i)\bpekerjaan\b`, normalizeTitle, FieldPekerjaan),
		labeled("kewarganegaraan", `(?i)\b(kewarganegaraan|warga\s*negara|warga)\b`, normalizeCitizenship, FieldKewarganegaraan),
		labeled("berlaku_hingga", `(?i)\bberlaku(\s*hingga)?\b`, normalizeValidity, FieldBerlakuHingga),
	}
}

func valueScan(name string, normalize Normalizer, fields ...Field) *FieldRule {
	return &FieldRule{
		Name:      name,
		Fields:    fields,
		Strategy:  ValueScan,
		Extract:   tokenText,
		Normalize: normalize,
	}
}

func labeled(name, trigger string, normalize Normalizer, fields ...Field) *FieldRule {
	fr := &FieldRule{
		Name:      name,
		Fields:    fields,
		Strategy:  LabelTriggered,
		Trigger:   regexp.MustCompile(trigger),
		Normalize: normalize,
	}
	fr.Extract = inlineOrLookahead(fr.Trigger)
	return fr
}

func withUnlabeledScan(fr *FieldRule) *FieldRule {
	fr.ScanUnlabeled = true
	return fr
}

func tokenText(tokens []Token, i int) string {
	return strings.TrimSpace(tokens[i].Text)
}

// trimValue drops the separators OCR leaves between a label and its value.
func trimValue(s string) string {
	return strings.Trim(s, " \t:;.,=-_|")
}

// inlineOrLookahead strips the label and returns what follows it. A bare
// label takes the first non-blank token within the lookahead window, unless
// that token is itself a label.
func inlineOrLookahead(label *regexp.Regexp) ValueExtractor {
	return func(tokens []Token, i int) string {
		text := tokens[i].Text
		if loc := label.FindStringIndex(text); loc != nil {
			if inline := trimValue(text[loc[1]:]); inline != "" {
				return inline
			}
		}
		for j := i + 1; j < len(tokens) && j <= i+lookaheadWindow; j++ {
			next := trimValue(tokens[j].Text)
			if next == "" {
				continue
			}
			if isLabel(next) {
				return ""
			}
			return next
		}
		return ""
	}
}

// isLabel reports whether text starts with any field label.
func isLabel(text string) bool {
	for _, re := range labelOnly {
		if re.MatchString(text) {
			return true
		}
	}
	for _, fr := range registry {
		if fr.Trigger == nil {
			continue
		}
		if loc := fr.Trigger.FindStringIndex(text); loc != nil && strings.TrimSpace(text[:loc[0]]) == "" {
			return true
		}
	}
	return false
}
