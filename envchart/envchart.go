// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package envchart renders a series of physic.Env readings as a trend chart
// image. It is display independent: the result is a plain image.Image that
// can be encoded to PNG or pushed to any display.Drawer.
package envchart

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
	"periph.io/x/conn/v3/physic"
)

// Opts represents the options available for the chart.
type Opts struct {
	// Width and Height of the rendered image in pixels.
	Width  int
	Height int
	// Samples is the number of readings kept; older readings scroll off.
	Samples int
}

// DefaultOpts sizes the chart for a small status page.
var DefaultOpts = Opts{Width: 640, Height: 240, Samples: 120}

type series struct {
	label string
	color color.NRGBA
	value func(physic.Env) float64
	unit  string
}

var allSeries = []series{
	{
		label: "temp",
		color: color.NRGBA{0xD0, 0x40, 0x30, 0xFF},
		value: func(e physic.Env) float64 {
			return float64(e.Temperature-physic.ZeroCelsius) / float64(physic.Celsius)
		},
		unit: "°C",
	},
	{
		label: "press",
		color: color.NRGBA{0x30, 0x60, 0xD0, 0xFF},
		value: func(e physic.Env) float64 {
			return float64(e.Pressure) / (100 * float64(physic.Pascal))
		},
		unit: "hPa",
	},
	{
		label: "hum",
		color: color.NRGBA{0x30, 0xA0, 0x50, 0xFF},
		value: func(e physic.Env) float64 {
			return float64(e.Humidity) / float64(physic.PercentRH)
		},
		unit: "%",
	},
}

// Chart accumulates readings and renders them. It is not safe for concurrent
// use.
type Chart struct {
	opts    Opts
	samples []physic.Env
}

// New returns an empty chart. A nil opts selects DefaultOpts.
func New(opts *Opts) *Chart {
	if opts == nil {
		o := DefaultOpts
		opts = &o
	}
	return &Chart{opts: *opts}
}

// Add appends one reading, discarding the oldest once Samples is reached.
func (c *Chart) Add(e physic.Env) {
	c.samples = append(c.samples, e)
	if len(c.samples) > c.opts.Samples {
		c.samples = c.samples[len(c.samples)-c.opts.Samples:]
	}
}

// Len returns the number of readings currently held.
func (c *Chart) Len() int {
	return len(c.samples)
}

// Render draws the held readings and returns the image. Each series is
// auto-scaled to its own min/max so the traces stay readable regardless of
// unit magnitudes.
func (c *Chart) Render() image.Image {
	dc := gg.NewContext(c.opts.Width, c.opts.Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	w := float64(c.opts.Width)
	h := float64(c.opts.Height)
	const margin = 4.0

	for i, s := range allSeries {
		min, max, ok := c.rangeOf(s)
		dc.SetColor(s.color)
		if ok {
			c.trace(dc, s, min, max, margin, w, h)
		}
		label := s.label
		if n := len(c.samples); n > 0 {
			label = fmt.Sprintf("%s %.2f%s", s.label, s.value(c.samples[n-1]), s.unit)
		}
		dc.DrawString(label, margin+2, margin+10+float64(i)*14)
	}
	return dc.Image()
}

func (c *Chart) rangeOf(s series) (min, max float64, ok bool) {
	if len(c.samples) < 2 {
		return 0, 0, false
	}
	min = s.value(c.samples[0])
	max = min
	for _, e := range c.samples[1:] {
		v := s.value(e)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max == min {
		// Flat line: widen the band so the trace sits mid-chart.
		min, max = min-1, max+1
	}
	return min, max, true
}

func (c *Chart) trace(dc *gg.Context, s series, min, max, margin, w, h float64) {
	n := len(c.samples)
	dx := (w - 2*margin) / float64(n-1)
	for i, e := range c.samples {
		v := (s.value(e) - min) / (max - min)
		x := margin + float64(i)*dx
		y := h - margin - v*(h-2*margin)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.SetLineWidth(1.5)
	dc.Stroke()
}

// EncodePNG renders the chart and writes it as PNG.
func (c *Chart) EncodePNG(w io.Writer) error {
	dc := gg.NewContextForImage(c.Render())
	return dc.EncodePNG(w)
}
