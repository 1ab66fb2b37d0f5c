// Package clistatus renders the "serve" command's live one-line status
// (active modifiers, locks, layer stack) to a terminal, colorizing each
// segment so the eye can separate them at a glance.
package clistatus

import "github.com/lucasb-eyer/go-colorful"

// rgb is a plain sRGB triple in [0,255], the smallest representation
// that can feed go-colorful's perceptual distance functions without
// dragging in a full terminal-attribute type.
type rgb struct {
	r, g, b uint8
	ansi    uint8 // SGR 38;5;<ansi> index
}

// palette is the xterm 16-color set, the safe common denominator every
// terminal clistatus targets supports without needing 256-color or
// truecolor detection.
var palette = []rgb{
	{0, 0, 0, 0}, {205, 0, 0, 1}, {0, 205, 0, 2}, {205, 205, 0, 3},
	{0, 0, 238, 4}, {205, 0, 205, 5}, {0, 205, 205, 6}, {229, 229, 229, 7},
	{127, 127, 127, 8}, {255, 0, 0, 9}, {0, 255, 0, 10}, {255, 255, 0, 11},
	{92, 92, 255, 12}, {255, 0, 255, 13}, {0, 255, 255, 14}, {255, 255, 255, 15},
}

func (c rgb) colorful() colorful.Color {
	return colorful.Color{R: float64(c.r) / 255.0, G: float64(c.g) / 255.0, B: float64(c.b) / 255.0}
}

// nearestAnsi finds the palette entry perceptually closest to target,
// the same CIE76-distance technique the terminal driver's own color
// matcher uses for its richer 256/truecolor palettes — this package
// just targets the 16-color safe subset.
func nearestAnsi(target rgb) uint8 {
	best := palette[0]
	bestDist := target.colorful().DistanceCIE76(best.colorful())
	for _, cand := range palette[1:] {
		d := target.colorful().DistanceCIE76(cand.colorful())
		if d < bestDist {
			best = cand
			bestDist = d
		}
	}
	return best.ansi
}

// Category assigns a semantically distinct hue to each kind of status
// segment, so a reader tells modifiers from locks from layers by color
// alone even before reading the text.
type Category int

const (
	CategoryModifier Category = iota
	CategoryLock
	CategoryLayer
	CategoryNeutral
)

var categoryColor = map[Category]rgb{
	CategoryModifier: {80, 160, 255, 0},  // blue-ish
	CategoryLock:     {255, 140, 0, 0},   // amber
	CategoryLayer:    {100, 220, 100, 0}, // green
	CategoryNeutral:  {200, 200, 200, 0}, // light gray
}

// ansiFor resolves a Category to its nearest 16-color SGR index.
func ansiFor(cat Category) uint8 {
	c := categoryColor[cat]
	return nearestAnsi(c)
}
