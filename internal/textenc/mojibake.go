// Package textenc repairs text damaged by legacy encoding round-trips.
package textenc

import (
	"strings"
	"unicode/utf8"
)

// Runes that almost never lead real Spanish text but always appear in
// mojibake pairs after a UTF-8 -> latin-1 -> UTF-8 mis-decode.
const markerRunes = "ÃÂâ�"

// cp1252Reverse maps the Windows-1252 punctuation range back to its raw
// byte so the round-trip can undo double-encoded smart quotes and dashes.
var cp1252Reverse = map[rune]byte{
	'€': 0x80, '‚': 0x82, 'ƒ': 0x83, '„': 0x84,
	'…': 0x85, '†': 0x86, '‡': 0x87, 'ˆ': 0x88,
	'‰': 0x89, 'Š': 0x8a, '‹': 0x8b, 'Œ': 0x8c,
	'Ž': 0x8e, '‘': 0x91, '’': 0x92, '“': 0x93,
	'”': 0x94, '•': 0x95, '–': 0x96, '—': 0x97,
	'˜': 0x98, '™': 0x99, 'š': 0x9a, '›': 0x9b,
	'œ': 0x9c, 'ž': 0x9e, 'Ÿ': 0x9f,
}

// pairRepairs covers the frequent Spanish diacritic pairs as a lossy
// fallback when the full round-trip cannot be applied. The second rune of
// several uppercase pairs is an invisible C1 control, hence the escapes.
var pairRepairs = strings.NewReplacer(
	"Ã¡", "á", "Ã©", "é", "Ã­", "í", "Ã³", "ó", "Ãº", "ú",
	"Ã±", "ñ", "Ã¼", "ü",
	"Ã", "Á", "Ã‰", "É", "Ã", "Í", "Ã“", "Ó", "Ãš", "Ú",
	"Ã‘", "Ñ", "Ãœ", "Ü",
	"Â¿", "¿", "Â¡", "¡", "Â°", "°",
)

// Repair undoes a UTF-8 text that was mis-decoded as latin-1/Windows-1252 and
// re-encoded, which is how the legacy backend mangles Spanish diacritics.
// Clean input is returned unchanged; repair is best effort and lossy.
func Repair(s string) string {
	if s == "" || !strings.ContainsAny(s, markerRunes) {
		return s
	}
	if fixed, ok := latin1Roundtrip(s); ok && mojibakeScore(fixed) < mojibakeScore(s) {
		return fixed
	}
	return pairRepairs.Replace(s)
}

// latin1Roundtrip re-encodes every rune as the single byte it was mis-decoded
// from and re-reads the byte stream as UTF-8. Fails when any rune has no
// single-byte representation, which means the text never went through latin-1.
func latin1Roundtrip(s string) (string, bool) {
	buf := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r < 0x100:
			buf = append(buf, byte(r))
		default:
			b, ok := cp1252Reverse[r]
			if !ok {
				return "", false
			}
			buf = append(buf, b)
		}
	}
	if !utf8.Valid(buf) {
		return "", false
	}
	return string(buf), true
}

func mojibakeScore(s string) int {
	score := 0
	for _, r := range s {
		switch r {
		case 'Ã', 'Â', 'â', '€', '�':
			score++
		}
	}
	return score
}
