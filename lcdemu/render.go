// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package lcdemu

import (
	"bytes"
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"golang.org/x/image/font/gofont/goregular"
)

// The classic yellow-green STN panel.
var (
	litBacklight  = color.NRGBA{R: 0x9a, G: 0xb8, B: 0x2a, A: 255}
	darkBacklight = color.NRGBA{R: 0x2a, G: 0x33, B: 0x10, A: 255}
)

// Terminal renders the emulated panel to a terminal using ANSI color
// codes, one colored block on each side of the text standing in for the
// backlight.
type Terminal struct {
	emu     *Emu
	w       io.Writer
	palette ansi256.Palette

	buf bytes.Buffer
}

// NewTerminal returns a renderer writing to stdout. A nil palette selects
// ansi256.Default.
func NewTerminal(e *Emu, p *ansi256.Palette) *Terminal {
	if p == nil {
		p = ansi256.Default
	}
	return &Terminal{
		emu:     e,
		w:       colorable.NewColorableStdout(),
		palette: *p,
	}
}

// Refresh redraws the panel contents.
func (t *Terminal) Refresh() error {
	t.emu.mu.Lock()
	bg := darkBacklight
	if t.emu.latch&pinBacklight != 0 {
		bg = litBacklight
	}
	lines := make([][]byte, t.emu.rows)
	for r := range lines {
		if t.emu.displayOn {
			lines[r] = t.emu.line(r)
		} else {
			lines[r] = bytes.Repeat([]byte{' '}, t.emu.cols)
		}
	}
	t.emu.mu.Unlock()

	// This code is designed to minimize the amount of memory allocated per
	// call.
	t.buf.Reset()
	block := t.palette.Block(bg)
	for _, line := range lines {
		_, _ = t.buf.WriteString("\033[0m")
		_, _ = t.buf.WriteString(block)
		_, _ = t.buf.Write(line)
		_, _ = t.buf.WriteString(block)
		_, _ = t.buf.WriteString("\033[0m\n")
	}
	_, err := t.buf.WriteTo(t.w)
	return err
}

// SetWriter redirects the renderer, mostly for tests.
func (t *Terminal) SetWriter(w io.Writer) {
	t.w = w
}

// Snapshot draws the panel face into an image: backlight, cell grid and
// glyphs. Handy for golden screenshots in bug reports.
func (e *Emu) Snapshot() (image.Image, error) {
	const (
		cellW  = 24
		cellH  = 38
		gap    = 3
		margin = 18
	)
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	face := truetype.NewFace(f, &truetype.Options{Size: 24})

	e.mu.Lock()
	defer e.mu.Unlock()

	w := 2*margin + e.cols*(cellW+gap) - gap
	h := 2*margin + e.rows*(cellH+gap) - gap
	dc := gg.NewContext(w, h)
	bg := darkBacklight
	if e.latch&pinBacklight != 0 {
		bg = litBacklight
	}
	dc.SetColor(bg)
	dc.Clear()
	dc.SetFontFace(face)
	for r := 0; r < e.rows; r++ {
		line := e.line(r)
		for c := 0; c < e.cols; c++ {
			x := float64(margin + c*(cellW+gap))
			y := float64(margin + r*(cellH+gap))
			dc.SetRGBA(0, 0, 0, 0.08)
			dc.DrawRoundedRectangle(x, y, cellW, cellH, 2)
			dc.Fill()
			if e.displayOn && line[c] != ' ' {
				dc.SetRGB(0.08, 0.10, 0.04)
				dc.DrawStringAnchored(string(rune(line[c])), x+cellW/2, y+cellH/2, 0.5, 0.5)
			}
		}
	}
	return dc.Image(), nil
}
