package clistatus

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/keyrx/keyrx/mapping"
	"github.com/keyrx/keyrx/processor"
)

const csi = "\x1b["

func sgr(ansi uint8) string {
	return csi + "38;5;" + strconv.Itoa(int(ansi)) + "m"
}

const sgrReset = csi + "0m"

func segment(cat Category, label string, ids []uint8) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(int(id))
	}
	return sgr(ansiFor(cat)) + label + "[" + strings.Join(parts, ",") + "]" + sgrReset
}

// Render formats one StateSnapshot into a single colorized status line
// with no trailing newline, ready to be overwritten in place (a caller
// typically prefixes "\r" and pads to the previous line's width).
func Render(snap processor.StateSnapshot) string {
	var segs []string
	if s := segment(CategoryModifier, "mod", modifierIDs(snap.Modifiers)); s != "" {
		segs = append(segs, s)
	}
	if s := segment(CategoryLock, "lock", lockIDs(snap.Locks)); s != "" {
		segs = append(segs, s)
	}
	if s := segment(CategoryLayer, "layer", layerIDs(snap.Layers)); s != "" {
		segs = append(segs, s)
	}
	if len(segs) == 0 {
		return sgr(ansiFor(CategoryNeutral)) + snap.DeviceID + ": idle" + sgrReset
	}
	return sgr(ansiFor(CategoryNeutral)) + snap.DeviceID + ": " + sgrReset + strings.Join(segs, " ")
}

func modifierIDs(ids []mapping.ModifierId) []uint8 {
	out := make([]uint8, len(ids))
	for i, id := range ids {
		out[i] = uint8(id)
	}
	return out
}

func lockIDs(ids []mapping.LockId) []uint8 {
	out := make([]uint8, len(ids))
	for i, id := range ids {
		out[i] = uint8(id)
	}
	return out
}

func layerIDs(ids []mapping.LayerId) []uint8 {
	out := make([]uint8, len(ids))
	for i, id := range ids {
		out[i] = uint8(id)
	}
	return out
}

// VisibleWidth returns the terminal column width of s with SGR escape
// sequences stripped, so a caller can pad/clear the previous line
// without miscounting escape bytes as columns.
func VisibleWidth(s string) int {
	width := 0
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			width += runewidth.RuneWidth(r)
		}
	}
	return width
}

// Clear returns the carriage-return-and-pad sequence needed to erase a
// previously rendered line of prevWidth visible columns before writing
// a new, possibly shorter one.
func Clear(prevWidth int) string {
	if prevWidth <= 0 {
		return "\r"
	}
	return "\r" + strings.Repeat(" ", prevWidth) + "\r"
}

// Fprint is a small convenience wrapper most callers want: clear the
// previous line, render the new one, and report its width so the next
// call can clear it in turn.
func Fprint(w io.Writer, snap processor.StateSnapshot, prevWidth int) int {
	line := Render(snap)
	fmt.Fprint(w, Clear(prevWidth), line)
	return VisibleWidth(line)
}
