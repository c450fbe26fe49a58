package shaper

import (
	"strings"

	"golang.org/x/text/unicode/bidi"
)

// mirrors lists the paired punctuation swapped on right-to-left runs.
var mirrors = map[rune]rune{
	'(': ')', ')': '(',
	'[': ']', ']': '[',
	'{': '}', '}': '{',
	'<': '>', '>': '<',
	'«': '»', '»': '«',
	'‹': '›', '›': '‹',
}

func classOf(r rune) bidi.Class {
	p, _ := bidi.LookupRune(r)
	return p.Class()
}

// IsRTL reports whether r has strong right-to-left directionality.
func IsRTL(r rune) bool {
	c := classOf(r)
	return c == bidi.R || c == bidi.AL
}

// ContainsRTL reports whether text has at least one right-to-left character.
func ContainsRTL(text string) bool {
	for _, r := range text {
		if IsRTL(r) {
			return true
		}
	}
	return false
}

// Reorder converts each line of text from logical to visual order. Embedding
// and isolate controls are treated as neutrals.
func Reorder(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = string(reorderLine([]rune(line)))
	}
	return strings.Join(lines, "\n")
}

func isNeutral(c bidi.Class) bool {
	switch c {
	case bidi.B, bidi.S, bidi.WS, bidi.ON, bidi.BN,
		bidi.LRE, bidi.RLE, bidi.LRO, bidi.RLO, bidi.PDF,
		bidi.LRI, bidi.RLI, bidi.FSI, bidi.PDI, bidi.Control:
		return true
	}
	return false
}

// paragraphLevel follows the first strong character rule; text without any
// strong character is left-to-right.
func paragraphLevel(classes []bidi.Class) int {
	for _, c := range classes {
		switch c {
		case bidi.L:
			return 0
		case bidi.R, bidi.AL:
			return 1
		}
	}
	return 0
}

func baseClass(level int) bidi.Class {
	if level%2 == 1 {
		return bidi.R
	}
	return bidi.L
}

func resolveWeak(cls []bidi.Class, level int) {
	sos := baseClass(level)

	// W1: non-spacing marks take the type of the preceding character.
	for i, c := range cls {
		if c != bidi.NSM {
			continue
		}
		if i == 0 {
			cls[i] = sos
		} else {
			cls[i] = cls[i-1]
		}
	}

	// W2 and W3: European numbers after Arabic letters are Arabic numbers.
	lastStrong := sos
	for i, c := range cls {
		switch c {
		case bidi.L, bidi.R, bidi.AL:
			lastStrong = c
		case bidi.EN:
			if lastStrong == bidi.AL {
				cls[i] = bidi.AN
			}
		}
	}
	for i, c := range cls {
		if c == bidi.AL {
			cls[i] = bidi.R
		}
	}

	// W4: a single separator between two numbers of the same type joins them.
	for i := 1; i+1 < len(cls); i++ {
		prev, next := cls[i-1], cls[i+1]
		switch cls[i] {
		case bidi.ES:
			if prev == bidi.EN && next == bidi.EN {
				cls[i] = bidi.EN
			}
		case bidi.CS:
			if prev == next && (prev == bidi.EN || prev == bidi.AN) {
				cls[i] = prev
			}
		}
	}

	// W5: terminators adjacent to European numbers become numbers.
	for i := 0; i < len(cls); {
		if cls[i] != bidi.ET {
			i++
			continue
		}
		j := i
		for j < len(cls) && cls[j] == bidi.ET {
			j++
		}
		if (i > 0 && cls[i-1] == bidi.EN) || (j < len(cls) && cls[j] == bidi.EN) {
			for k := i; k < j; k++ {
				cls[k] = bidi.EN
			}
		}
		i = j
	}

	// W6 and W7.
	lastStrong = sos
	for i, c := range cls {
		switch c {
		case bidi.ES, bidi.ET, bidi.CS:
			cls[i] = bidi.ON
		case bidi.L, bidi.R:
			lastStrong = c
		case bidi.EN:
			if lastStrong == bidi.L {
				cls[i] = bidi.L
			}
		}
	}
}

// strongOf maps resolved classes to the direction they count as for neutrals.
func strongOf(c bidi.Class) (bidi.Class, bool) {
	switch c {
	case bidi.L:
		return bidi.L, true
	case bidi.R, bidi.AN, bidi.EN:
		return bidi.R, true
	}
	return 0, false
}

func resolveNeutral(cls []bidi.Class, level int) {
	edge := baseClass(level)
	for i := 0; i < len(cls); {
		if !isNeutral(cls[i]) {
			i++
			continue
		}
		j := i
		for j < len(cls) && isNeutral(cls[j]) {
			j++
		}

		before, after := edge, edge
		if i > 0 {
			if s, ok := strongOf(cls[i-1]); ok {
				before = s
			}
		}
		if j < len(cls) {
			if s, ok := strongOf(cls[j]); ok {
				after = s
			}
		}

		resolved := edge
		if before == after {
			resolved = before
		}
		for k := i; k < j; k++ {
			cls[k] = resolved
		}
		i = j
	}
}

func resolveLevels(cls []bidi.Class, level int) []int {
	levels := make([]int, len(cls))
	for i, c := range cls {
		if level%2 == 0 {
			switch c {
			case bidi.R:
				levels[i] = level + 1
			case bidi.AN, bidi.EN:
				levels[i] = level + 2
			default:
				levels[i] = level
			}
		} else {
			switch c {
			case bidi.L, bidi.EN, bidi.AN:
				levels[i] = level + 1
			default:
				levels[i] = level
			}
		}
	}
	return levels
}

func reorderLine(rs []rune) []rune {
	if len(rs) == 0 {
		return rs
	}

	original := make([]bidi.Class, len(rs))
	hasRTL := false
	for i, r := range rs {
		original[i] = classOf(r)
		if original[i] == bidi.R || original[i] == bidi.AL || original[i] == bidi.AN {
			hasRTL = true
		}
	}
	level := paragraphLevel(original)
	if level == 0 && !hasRTL {
		return rs
	}

	cls := make([]bidi.Class, len(rs))
	copy(cls, original)
	resolveWeak(cls, level)
	resolveNeutral(cls, level)
	levels := resolveLevels(cls, level)

	// L1: trailing whitespace sits at the paragraph level.
	for i := len(rs) - 1; i >= 0; i-- {
		c := original[i]
		if c != bidi.WS && c != bidi.S && c != bidi.B && c != bidi.BN {
			break
		}
		levels[i] = level
	}

	maxLevel, minOdd := 0, -1
	for _, l := range levels {
		if l > maxLevel {
			maxLevel = l
		}
		if l%2 == 1 && (minOdd == -1 || l < minOdd) {
			minOdd = l
		}
	}

	out := make([]rune, len(rs))
	copy(out, rs)
	for i, l := range levels {
		if l%2 == 1 {
			if m, ok := mirrors[out[i]]; ok {
				out[i] = m
			}
		}
	}

	if minOdd == -1 {
		return out
	}

	// L2: reverse every run at or above each level, highest first.
	lv := make([]int, len(levels))
	copy(lv, levels)
	for target := maxLevel; target >= minOdd; target-- {
		for i := 0; i < len(out); {
			if lv[i] < target {
				i++
				continue
			}
			j := i
			for j < len(out) && lv[j] >= target {
				j++
			}
			reverseRunes(out[i:j])
			reverseInts(lv[i:j])
			i = j
		}
	}
	return out
}

func reverseRunes(s []rune) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func reverseInts(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
