package ktp

// Field is the canonical name of a KTP field as it appears in the JSON output.
type Field string

const (
	FieldNIK              Field = "nik"
	FieldNama             Field = "nama"
	FieldTempatLahir      Field = "tempat_lahir"
	FieldTglLahir         Field = "tgl_lahir"
	FieldJenisKelamin     Field = "jenis_kelamin"
	FieldGolDarah         Field = "gol_darah"
	FieldAlamat           Field = "alamat"
	FieldRTRW             Field = "rt_rw"
	FieldKelurahan        Field = "kelurahan"
	FieldKecamatan        Field = "kecamatan"
	FieldAgama            Field = "agama"
	FieldStatusPerkawinan Field = "status_perkawinan"
	FieldPekerjaan        Field = "pekerjaan"
	FieldKewarganegaraan  Field = "kewarganegaraan"
	FieldBerlakuHingga    Field = "berlaku_hingga"
)

// AllFields lists the 15 canonical fields in card order.
var AllFields = []Field{
	FieldNIK,
	FieldNama,
	FieldTempatLahir,
	FieldTglLahir,
	FieldJenisKelamin,
	FieldGolDarah,
	FieldAlamat,
	FieldRTRW,
	FieldKelurahan,
	FieldKecamatan,
	FieldAgama,
	FieldStatusPerkawinan,
	FieldPekerjaan,
	FieldKewarganegaraan,
	FieldBerlakuHingga,
}

// NoConfidence is the ConfidenceAvg sentinel used when the engine reported no scores.
const NoConfidence = -1.0

// Record is the structured result of one extraction. A nil field means the
// value could not be resolved.
type Record struct {
	NIK              *string `json:"nik"`
	Nama             *string `json:"nama"`
	TempatLahir      *string `json:"tempat_lahir"`
	TglLahir         *string `json:"tgl_lahir"`
	JenisKelamin     *string `json:"jenis_kelamin"`
	GolDarah         *string `json:"gol_darah"`
	Alamat           *string `json:"alamat"`
	RTRW             *string `json:"rt_rw"`
	Kelurahan        *string `json:"kelurahan"`
	Kecamatan        *string `json:"kecamatan"`
	Agama            *string `json:"agama"`
	StatusPerkawinan *string `json:"status_perkawinan"`
	Pekerjaan        *string `json:"pekerjaan"`
	Kewarganegaraan  *string `json:"kewarganegaraan"`
	BerlakuHingga    *string `json:"berlaku_hingga"`

	ConfidenceAvg float64  `json:"confidence_avg"`
	ParseWarnings []string `json:"parse_warnings"`
}

// NewRecord returns an empty record with no resolved fields.
func NewRecord() *Record {
	return &Record{ParseWarnings: []string{}}
}

func (r *Record) slot(f Field) **string {
	switch f {
	case FieldNIK:
		return &r.NIK
	case FieldNama:
		return &r.Nama
	case FieldTempatLahir:
		return &r.TempatLahir
	case FieldTglLahir:
		return &r.TglLahir
	case FieldJenisKelamin:
		return &r.JenisKelamin
	case FieldGolDarah:
		return &r.GolDarah
	case FieldAlamat:
		return &r.Alamat
	case FieldRTRW:
		return &r.RTRW
	case FieldKelurahan:
		return &r.Kelurahan
	case FieldKecamatan:
		return &r.Kecamatan
	case FieldAgama:
		return &r.Agama
	case FieldStatusPerkawinan:
		return &r.StatusPerkawinan
	case FieldPekerjaan:
		return &r.Pekerjaan
	case FieldKewarganegaraan:
		return &r.Kewarganegaraan
	case FieldBerlakuHingga:
		return &r.BerlakuHingga
	default:
		return nil
	}
}

// Get returns the value of f and whether it was resolved.
func (r *Record) Get(f Field) (string, bool) {
	p := r.slot(f)
	if p == nil || *p == nil {
		return "", false
	}
	return **p, true
}

// Has reports whether f has been resolved.
func (r *Record) Has(f Field) bool {
	_, ok := r.Get(f)
	return ok
}

func (r *Record) set(f Field, value string) {
	p := r.slot(f)
	if p == nil || value == "" {
		return
	}
	v := value
	*p = &v
}

func (r *Record) clear(f Field) {
	if p := r.slot(f); p != nil {
		*p = nil
	}
}

func (r *Record) warn(msg string) {
	r.ParseWarnings = append(r.ParseWarnings, msg)
}

// Resolved returns the number of non-null canonical fields.
func (r *Record) Resolved() int {
	n := 0
	for _, f := range AllFields {
		if r.Has(f) {
			n++
		}
	}
	return n
}

// Completeness is the fraction of the canonical fields that were resolved.
func (r *Record) Completeness() float64 {
	return float64(r.Resolved()) / float64(len(AllFields))
}

// Fields returns the resolved values keyed by field name.
func (r *Record) Fields() map[Field]string {
	out := make(map[Field]string, len(AllFields))
	for _, f := range AllFields {
		if v, ok := r.Get(f); ok {
			out[f] = v
		}
	}
	return out
}
