// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// bmx280env reads a BMP280/BME280 sensor and prints the compensated
// readings. It can optionally render the collected readings as a PNG trend
// chart, and colorize a temperature gauge on ANSI terminals.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"io"
	"log"
	"os"
	"time"

	"github.com/GermanBionicSystems/bmx280"
	"github.com/GermanBionicSystems/bmx280/envchart"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

var (
	busName  = flag.String("bus", "", "I²C bus to use (default: first available)")
	addr     = flag.Uint("addr", uint(bmx280.DefaultAddress), "device address, 0x76 or 0x77")
	count    = flag.Int("n", 10, "number of readings to take")
	interval = flag.Duration("interval", time.Second, "time between readings")
	seaLevel = flag.Float64("sealevel", 1013.25, "sea-level pressure in hPa, for altitude")
	chart    = flag.String("chart", "", "write a PNG trend chart of the readings to this file")
	useColor = flag.Bool("color", false, "render a colored temperature gauge (ANSI terminal)")
)

// gauge renders the temperature as a row of colored blocks, blue at -10°C
// shading to red at 40°C.
func gauge(w io.Writer, palette *ansi256.Palette, t physic.Temperature) {
	const blocks = 24
	c := float64(t-physic.ZeroCelsius) / float64(physic.Celsius)
	f := (c + 10) / 50
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	lit := int(f * blocks)
	for i := 0; i < blocks; i++ {
		col := color.NRGBA{A: 255}
		if i < lit {
			col.R = uint8(255 * f)
			col.B = uint8(255 * (1 - f))
		}
		fmt.Fprint(w, palette.Block(col))
	}
	fmt.Fprint(w, "\033[0m ")
}

func mainImpl() error {
	flag.Parse()
	if _, err := host.Init(); err != nil {
		return err
	}
	bus, err := i2creg.Open(*busName)
	if err != nil {
		return err
	}
	defer bus.Close()

	dev, err := bmx280.New(bus, i2c.Addr(*addr), nil)
	if err != nil {
		return err
	}
	defer dev.Halt()
	log.Printf("found %s", dev)

	sl := physic.Pressure(*seaLevel * 100 * float64(physic.Pascal))
	trend := envchart.New(nil)
	stdout := colorable.NewColorableStdout()

	for i := 0; i < *count; i++ {
		if i != 0 {
			time.Sleep(*interval)
		}
		env := physic.Env{}
		if err := dev.Sense(&env); err != nil {
			return err
		}
		trend.Add(env)
		if *useColor {
			gauge(stdout, ansi256.Default, env.Temperature)
		}
		alt := ""
		if env.Pressure != 0 {
			// 0 Pa can be the compensation's degenerate-case guard, skip
			// the altitude for it.
			alt = fmt.Sprintf("   Altitude: %.1fm", float64(bmx280.AltitudeAt(env.Pressure, sl))/float64(physic.Metre))
		}
		fmt.Fprintf(stdout, "Temperature: %s   Pressure: %s   Humidity: %s%s\n",
			env.Temperature, env.Pressure, env.Humidity, alt)
	}

	if *chart != "" {
		f, err := os.Create(*chart)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := trend.EncodePNG(f); err != nil {
			return err
		}
		log.Printf("wrote %s", *chart)
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "bmx280env: %s.\n", err)
		os.Exit(1)
	}
}
