// Package markup handles the legacy chat color markup: '&' or '§' followed by a code
// character (0-9, a-f, k-o, r, x) and '&#rrggbb' hex colors.
package markup

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gookit/color"
)

const hexLength = 6

var legacyColors = map[rune]color.Color{
	'0': color.FgBlack,
	'1': color.FgBlue,
	'2': color.FgGreen,
	'3': color.FgCyan,
	'4': color.FgRed,
	'5': color.FgMagenta,
	'6': color.FgYellow,
	'7': color.FgWhite,
	'8': color.FgDarkGray,
	'9': color.FgLightBlue,
	'a': color.FgLightGreen,
	'b': color.FgLightCyan,
	'c': color.FgLightRed,
	'd': color.FgLightMagenta,
	'e': color.FgLightYellow,
	'f': color.FgLightWhite,
}

var legacyStyles = map[rune]color.Color{
	'k': color.OpBlink,
	'l': color.OpBold,
	'm': color.OpStrikethrough,
	'n': color.OpUnderscore,
	'o': color.OpItalic,
}

// token is one markup sequence found at a position of the input.
type token struct {
	width int    // runes consumed
	code  rune   // lower-cased legacy code, 0 for hex
	hex   string // rrggbb for hex colors
}

// Strip removes every color and style sequence and keeps the text.
// Removing a sequence can join its neighbours into a new one ("&&cc"), so passes repeat
// until nothing is left to remove.
func Strip(s string) string {
	for strings.ContainsAny(s, "&§") {
		stripped := stripOnce(s)
		if stripped == s {
			break
		}
		s = stripped
	}
	return s
}

func stripOnce(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(runes); {
		if tok, ok := scan(runes, i); ok {
			i += tok.width
			continue
		}
		b.WriteRune(runes[i])
		i++
	}
	return b.String()
}

// HasMarkup reports whether s still holds a color or style sequence.
func HasMarkup(s string) bool {
	runes := []rune(s)
	for i := range runes {
		if _, ok := scan(runes, i); ok {
			return true
		}
	}
	return false
}

// ToANSI renders the markup as terminal escape sequences.
// A color resets the active styles, '&r' resets everything.
func ToANSI(s string) string {
	if !strings.ContainsAny(s, "&§") {
		return s
	}
	runes := []rune(s)
	var (
		out   strings.Builder
		text  strings.Builder
		codes []string
	)
	flush := func() {
		if text.Len() == 0 {
			return
		}
		out.WriteString(color.RenderCode(strings.Join(codes, ";"), text.String()))
		text.Reset()
	}
	for i := 0; i < len(runes); {
		tok, ok := scan(runes, i)
		if !ok {
			text.WriteRune(runes[i])
			i++
			continue
		}
		flush()
		i += tok.width
		switch {
		case tok.hex != "":
			codes = []string{hexCode(tok.hex)}
		case tok.code == 'r':
			codes = nil
		case tok.code == 'x':
			// Hex prefix of the '§x§r§r§g§g§b§b' form, digits that follow are read as colors.
		default:
			if c, ok := legacyColors[tok.code]; ok {
				codes = []string{c.Code()}
			} else if st, ok := legacyStyles[tok.code]; ok {
				codes = append(codes, st.Code())
			}
		}
	}
	flush()
	return out.String()
}

// Plain strips both legacy markup and terminal escape sequences.
func Plain(s string) string {
	return color.ClearCode(Strip(s))
}

func scan(runes []rune, i int) (token, bool) {
	if runes[i] != '&' && runes[i] != '§' {
		return token{}, false
	}
	if i+1 >= len(runes) {
		return token{}, false
	}
	next := toLower(runes[i+1])
	if next == '#' && runes[i] == '&' {
		if i+2+hexLength <= len(runes) && isHex(runes[i+2:i+2+hexLength]) {
			return token{width: 2 + hexLength, hex: string(runes[i+2 : i+2+hexLength])}, true
		}
		return token{}, false
	}
	if !isCode(next) {
		return token{}, false
	}
	return token{width: 2, code: next}, true
}

func isCode(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'k' && r <= 'o') || r == 'r' || r == 'x'
}

func isHex(runes []rune) bool {
	for _, r := range runes {
		r = toLower(r)
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			return false
		}
	}
	return true
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

func hexCode(hex string) string {
	v, _ := strconv.ParseUint(hex, 16, 32)
	return fmt.Sprintf("38;2;%d;%d;%d", (v>>16)&0xff, (v>>8)&0xff, v&0xff)
}
