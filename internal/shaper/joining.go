package shaper

import "unicode"

type joiningType uint8

const (
	joinNone joiningType = iota
	joinRight
	joinDual
	joinCausing
	joinTransparent
)

// forms holds the presentation forms of one letter. Right-joining letters have
// no initial or medial form.
type forms struct {
	isolated, final, initial, medial rune
}

const (
	lam     = '\u0644'
	tatweel = '\u0640'
	zwj     = '\u200d'
)

var arabicForms = map[rune]forms{
	'ء': {0xFE80, 0, 0, 0}, // hamza, non-joining
	'آ': {0xFE81, 0xFE82, 0, 0},
	'أ': {0xFE83, 0xFE84, 0, 0},
	'ؤ': {0xFE85, 0xFE86, 0, 0},
	'إ': {0xFE87, 0xFE88, 0, 0},
	'ئ': {0xFE89, 0xFE8A, 0xFE8B, 0xFE8C},
	'ا': {0xFE8D, 0xFE8E, 0, 0},
	'ب': {0xFE8F, 0xFE90, 0xFE91, 0xFE92},
	'ة': {0xFE93, 0xFE94, 0, 0},
	'ت': {0xFE95, 0xFE96, 0xFE97, 0xFE98},
	'ث': {0xFE99, 0xFE9A, 0xFE9B, 0xFE9C},
	'ج': {0xFE9D, 0xFE9E, 0xFE9F, 0xFEA0},
	'ح': {0xFEA1, 0xFEA2, 0xFEA3, 0xFEA4},
	'خ': {0xFEA5, 0xFEA6, 0xFEA7, 0xFEA8},
	'د': {0xFEA9, 0xFEAA, 0, 0},
	'ذ': {0xFEAB, 0xFEAC, 0, 0},
	'ر': {0xFEAD, 0xFEAE, 0, 0},
	'ز': {0xFEAF, 0xFEB0, 0, 0},
	'س': {0xFEB1, 0xFEB2, 0xFEB3, 0xFEB4},
	'ش': {0xFEB5, 0xFEB6, 0xFEB7, 0xFEB8},
	'ص': {0xFEB9, 0xFEBA, 0xFEBB, 0xFEBC},
	'ض': {0xFEBD, 0xFEBE, 0xFEBF, 0xFEC0},
	'ط': {0xFEC1, 0xFEC2, 0xFEC3, 0xFEC4},
	'ظ': {0xFEC5, 0xFEC6, 0xFEC7, 0xFEC8},
	'ع': {0xFEC9, 0xFECA, 0xFECB, 0xFECC},
	'غ': {0xFECD, 0xFECE, 0xFECF, 0xFED0},
	'ف': {0xFED1, 0xFED2, 0xFED3, 0xFED4},
	'ق': {0xFED5, 0xFED6, 0xFED7, 0xFED8},
	'ك': {0xFED9, 0xFEDA, 0xFEDB, 0xFEDC},
	'ل': {0xFEDD, 0xFEDE, 0xFEDF, 0xFEE0},
	'م': {0xFEE1, 0xFEE2, 0xFEE3, 0xFEE4},
	'ن': {0xFEE5, 0xFEE6, 0xFEE7, 0xFEE8},
	'ه': {0xFEE9, 0xFEEA, 0xFEEB, 0xFEEC},
	'و': {0xFEED, 0xFEEE, 0, 0},
	'ى': {0xFEEF, 0xFEF0, 0, 0},
	'ي': {0xFEF1, 0xFEF2, 0xFEF3, 0xFEF4},
	// Persian and Urdu letters (Presentation Forms-A)
	'پ': {0xFB56, 0xFB57, 0xFB58, 0xFB59},
	'چ': {0xFB7A, 0xFB7B, 0xFB7C, 0xFB7D},
	'ژ': {0xFB8A, 0xFB8B, 0, 0},
	'ک': {0xFB8E, 0xFB8F, 0xFB90, 0xFB91},
	'گ': {0xFB92, 0xFB93, 0xFB94, 0xFB95},
	'ی': {0xFBFC, 0xFBFD, 0xFBFE, 0xFBFF},
}

// lamAlef maps the alef following a lam to the {isolated, final} ligature.
var lamAlef = map[rune][2]rune{
	'آ': {0xFEF5, 0xFEF6},
	'أ': {0xFEF7, 0xFEF8},
	'إ': {0xFEF9, 0xFEFA},
	'ا': {0xFEFB, 0xFEFC},
}

func joiningOf(r rune) joiningType {
	switch r {
	case tatweel, zwj:
		return joinCausing
	}
	if f, ok := arabicForms[r]; ok {
		switch {
		case f.initial != 0:
			return joinDual
		case f.final != 0:
			return joinRight
		default:
			return joinNone
		}
	}
	if unicode.Is(unicode.Mn, r) {
		return joinTransparent
	}
	return joinNone
}

// neighbour returns the joining type of the closest non-transparent rune
// before (step -1) or after (step +1) index i.
func neighbour(rs []rune, i, step int) joiningType {
	for j := i + step; j >= 0 && j < len(rs); j += step {
		if t := joiningOf(rs[j]); t != joinTransparent {
			return t
		}
	}
	return joinNone
}

// Reshape replaces Arabic letters with their contextual presentation forms and
// composes lam-alef ligatures. Input and output are in logical order.
func Reshape(text string) string {
	rs := []rune(text)
	out := make([]rune, 0, len(rs))

	for i := 0; i < len(rs); i++ {
		r := rs[i]
		f, ok := arabicForms[r]
		if !ok {
			out = append(out, r)
			continue
		}

		prev := neighbour(rs, i, -1)
		joinsPrev := f.final != 0 && (prev == joinDual || prev == joinCausing)

		if r == lam && i+1 < len(rs) {
			if lig, ok := lamAlef[rs[i+1]]; ok {
				if joinsPrev {
					out = append(out, lig[1])
				} else {
					out = append(out, lig[0])
				}
				i++
				continue
			}
		}

		next := neighbour(rs, i, 1)
		joinsNext := f.initial != 0 && (next == joinDual || next == joinRight || next == joinCausing)

		switch {
		case joinsPrev && joinsNext:
			out = append(out, f.medial)
		case joinsPrev:
			out = append(out, f.final)
		case joinsNext:
			out = append(out, f.initial)
		default:
			out = append(out, f.isolated)
		}
	}
	return string(out)
}
