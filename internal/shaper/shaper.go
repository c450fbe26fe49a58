// Package shaper prepares translated text for drawing with a simple glyph
// renderer: Arabic letters are replaced by their contextual presentation forms
// and mixed-direction text is rearranged into visual order.
package shaper

import (
	"golang.org/x/text/unicode/bidi"
	"golang.org/x/text/unicode/norm"
)

// Direction 文本方向
type Direction int

const (
	LTR Direction = iota
	RTL
)

func (d Direction) String() string {
	if d == RTL {
		return "rtl"
	}
	return "ltr"
}

// DirectionOf returns the paragraph direction of text, decided by its first
// strong character.
func DirectionOf(text string) Direction {
	for _, r := range text {
		switch classOf(r) {
		case bidi.R, bidi.AL:
			return RTL
		case bidi.L:
			return LTR
		}
	}
	return LTR
}

// Shape returns text ready for left-to-right glyph placement. Text without any
// right-to-left character is returned unchanged. The result depends only on
// the input.
func Shape(text string) string {
	if text == "" || !ContainsRTL(text) {
		return text
	}
	return Reorder(Reshape(norm.NFC.String(text)))
}
