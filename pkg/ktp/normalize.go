package ktp

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// digitNoise maps letters that recognition engines confuse with digits in the
// monospaced NIK font.
var digitNoise = strings.NewReplacer(
	"O", "0", "o", "0",
	"I", "1", "l", "1",
	"Z", "2",
	"S", "5",
	"G", "6",
	"B", "8",
)

var (
	nikPattern      = regexp.MustCompile(`^\d{16}$`)
	nikLabel        = regexp.MustCompile(`(?i)^\s*nik\b[\s:;.\-]*`)
	nikRun          = regexp.MustCompile(`[0-9OolIZSGB]+`)
	nikNoise        = regexp.MustCompile(`[^0-9OolIZSGB]+`)
	namePattern     = regexp.MustCompile(`[^\p{L}\s'\-]`)
	birthPattern    = regexp.MustCompile(`(?i)([A-Z][A-Z\s\-]+?),?\s*(\d{2})[-/](\d{2})[-/](\d{4})`)
	datePattern     = regexp.MustCompile(`(\d{2})[-/](\d{2})[-/](\d{4})`)
	genderPattern   = regexp.MustCompile(`LAKI\s*-\s*LAKI|PEREMPUAN`)
	bloodPattern    = regexp.MustCompile(`\b(AB|A|B|O)\b`)
	bloodLoose      = regexp.MustCompile(`^([A-Z]{1,2})[+\-]?$`)
	rtrwPattern     = regexp.MustCompile(`(\d{1,3})\s*/\s*(\d{1,3})`)
	maritalPattern  = regexp.MustCompile(`\b(BELUM\s*KAWIN|CERAI\s*HIDUP|CERAI\s*MATI|KAWIN)\b`)
	citizenPattern  = regexp.MustCompile(`\b(WNI|WNA)\b`)
	validityPattern = regexp.MustCompile(`(\d{2})[-/](\d{2})[-/](\d{4})|SEUMUR\s*HIDUP`)
	spaces          = regexp.MustCompile(`\s+`)
)

// Religions is the whitelist of values accepted for the agama field, in match order.
var Religions = []string{"ISLAM", "KRISTEN", "KATOLIK", "HINDU", "BUDDHA", "BUDHA", "KONGHUCU", "KEPERCAYAAN"}

var religionAlias = map[string]string{
	"BUDHA": "BUDDHA",
}

// BloodTypes are the only values a resolved gol_darah may hold.
var BloodTypes = map[string]bool{"A": true, "B": true, "AB": true, "O": true}

var maritalCanonical = map[string]string{
	"BELUMKAWIN": "BELUM KAWIN",
	"KAWIN":      "KAWIN",
	"CERAIHIDUP": "CERAI HIDUP",
	"CERAIMATI":  "CERAI MATI",
}

// FixDigitNoise replaces digit-like letters with the digits they were most
// likely recognized from.
func FixDigitNoise(s string) string {
	return digitNoise.Replace(s)
}

// FoldText strips combining marks so accented glyphs some engines emit
// ("MÉLATI", "ISLÂM") match the plain Latin patterns printed on the card.
func FoldText(s string) string {
	if isASCII(s) {
		return s
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func collapse(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// titleCase is built per call; a cases.Caser carries state and cannot be shared.
func titleCase(s string) string {
	return cases.Title(language.Indonesian).String(collapse(s))
}

// normalizeNIK tries each digit-like run on its own first. Failing that, the
// runs are joined, which recovers a NIK the engine split into groups
// ("3216 0647 0890 0003").
func normalizeNIK(raw string) []string {
	s := nikLabel.ReplaceAllString(raw, "")
	for _, run := range nikRun.FindAllString(s, -1) {
		candidate := FixDigitNoise(run)
		if nikPattern.MatchString(candidate) {
			return []string{candidate}
		}
	}

	if joined := FixDigitNoise(nikNoise.ReplaceAllString(s, "")); nikPattern.MatchString(joined) {
		return []string{joined}
	}
	return []string{""}
}

func normalizeName(raw string) []string {
	cleaned := collapse(namePattern.ReplaceAllString(raw, ""))
	cleaned = strings.Trim(cleaned, "-' ")
	if cleaned == "" {
		return []string{""}
	}
	return []string{titleCase(cleaned)}
}

func normalizeTitle(raw string) []string {
	return []string{titleCase(raw)}
}

func formatDate(dd, mm, yyyy string) string {
	return fmt.Sprintf("%s-%s-%s", dd, mm, yyyy)
}

// normalizeBirth splits "PLACE, DD-MM-YYYY" into place and date. A bare date
// resolves only the date half.
func normalizeBirth(raw string) []string {
	if m := birthPattern.FindStringSubmatch(raw); m != nil {
		place := strings.Trim(collapse(m[1]), "- ")
		return []string{titleCase(place), formatDate(m[2], m[3], m[4])}
	}
	if m := datePattern.FindStringSubmatch(raw); m != nil {
		return []string{"", formatDate(m[1], m[2], m[3])}
	}
	return []string{"", ""}
}

func normalizeGender(raw string) []string {
	m := genderPattern.FindString(strings.ToUpper(raw))
	if m == "" {
		return []string{""}
	}
	if strings.HasPrefix(m, "LAKI") {
		return []string{"LAKI-LAKI"}
	}
	return []string{"PEREMPUAN"}
}

// normalizeBlood prefers a word-bounded A/B/AB/O. Any other one or two letter
// value is kept so the validator can reject it with a warning.
func normalizeBlood(raw string) []string {
	upper := strings.ToUpper(collapse(raw))
	if m := bloodPattern.FindStringSubmatch(upper); m != nil {
		return []string{m[1]}
	}
	if m := bloodLoose.FindStringSubmatch(upper); m != nil {
		return []string{m[1]}
	}
	return []string{""}
}

func pad3(s string) string {
	if len(s) >= 3 {
		return s
	}
	return strings.Repeat("0", 3-len(s)) + s
}

func normalizeRTRW(raw string) []string {
	m := rtrwPattern.FindStringSubmatch(FixDigitNoise(raw))
	if m == nil {
		return []string{""}
	}
	return []string{pad3(m[1]) + "/" + pad3(m[2])}
}

// normalizeReligion looks for any whitelisted religion inside the value.
func normalizeReligion(raw string) []string {
	upper := strings.ToUpper(raw)
	for _, religion := range Religions {
		if strings.Contains(upper, religion) {
			if canonical, ok := religionAlias[religion]; ok {
				return []string{canonical}
			}
			return []string{religion}
		}
	}
	return []string{""}
}

func normalizeMarital(raw string) []string {
	m := maritalPattern.FindString(strings.ToUpper(raw))
	if m == "" {
		return []string{""}
	}
	return []string{maritalCanonical[spaces.ReplaceAllString(m, "")]}
}

func normalizeCitizenship(raw string) []string {
	m := citizenPattern.FindStringSubmatch(strings.ToUpper(raw))
	if m == nil {
		return []string{""}
	}
	return []string{m[1]}
}

func normalizeValidity(raw string) []string {
	m := validityPattern.FindStringSubmatch(strings.ToUpper(raw))
	if m == nil {
		return []string{""}
	}
	if m[1] != "" {
		return []string{formatDate(m[1], m[2], m[3])}
	}
	return []string{"SEUMUR HIDUP"}
}
