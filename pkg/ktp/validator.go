package ktp

import (
	"fmt"
	"strconv"
)

// femaleDayOffset is added to the birth day encoded in a woman's NIK.
const femaleDayOffset = 40

// DecodeNIKBirth reads the day and month embedded in digits 7 to 10 of a NIK.
func DecodeNIKBirth(nik string) (day, month int, female bool, ok bool) {
	if !nikPattern.MatchString(nik) {
		return 0, 0, false, false
	}

	day, _ = strconv.Atoi(nik[6:8])
	month, _ = strconv.Atoi(nik[8:10])
	if day > femaleDayOffset {
		day -= femaleDayOffset
		female = true
	}

	return day, month, female, true
}

// Validate applies the cross-field checks to a parsed record. Invalid NIK and
// blood type values are nulled. A NIK that disagrees with tgl_lahir only adds
// a warning since either side may be misread.
func Validate(r *Record) {
	if nik, ok := r.Get(FieldNIK); ok && !nikPattern.MatchString(nik) {
		r.clear(FieldNIK)
		r.warn(fmt.Sprintf("invalid NIK %q, expected 16 digits", nik))
	}

	nik, hasNIK := r.Get(FieldNIK)
	birth, hasBirth := r.Get(FieldTglLahir)
	if hasNIK && hasBirth {
		if day, month, _, ok := DecodeNIKBirth(nik); ok {
			encoded := fmt.Sprintf("%02d-%02d", day, month)
			if len(birth) < 5 || birth[:5] != encoded {
				r.warn(fmt.Sprintf("NIK birth date %s does not match tgl_lahir %s", encoded, birth))
			}
		}
	}

	if blood, ok := r.Get(FieldGolDarah); ok && !BloodTypes[blood] {
		r.clear(FieldGolDarah)
		r.warn(fmt.Sprintf("invalid blood type %q", blood))
	}
}
