// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bmx280

import (
	"fmt"
	"time"
)

// Mode is the operating mode bit field of the ctrl_meas register.
type Mode uint8

const (
	// Sleep performs no measurements.
	Sleep Mode = 0b00
	// Forced performs a single measurement per trigger, then returns to
	// sleep. Sense rewrites ctrl_meas to trigger each conversion.
	Forced Mode = 0b01
	// Normal cycles measurements continuously, pausing Standby between
	// cycles.
	Normal Mode = 0b11
)

// Oversampling is the per-channel sample averaging setting. Higher values
// trade conversion time and power for lower noise.
type Oversampling uint8

const (
	Off  Oversampling = 0b000
	O1x  Oversampling = 0b001
	O2x  Oversampling = 0b010
	O4x  Oversampling = 0b011
	O8x  Oversampling = 0b100
	O16x Oversampling = 0b101
)

// Filter is the IIR filter coefficient applied by the chip before readings
// reach the data registers.
type Filter uint8

const (
	FilterOff Filter = 0b000
	Filter2   Filter = 0b001
	Filter4   Filter = 0b010
	Filter8   Filter = 0b011
	Filter16  Filter = 0b100
)

// Standby is the idle time between conversion cycles in normal mode.
type Standby uint8

const (
	Standby500us Standby = 0b000
	Standby62ms  Standby = 0b001
	Standby125ms Standby = 0b010
	Standby250ms Standby = 0b011
	Standby500ms Standby = 0b100
	Standby1s    Standby = 0b101
	Standby10ms  Standby = 0b110
	Standby20ms  Standby = 0b111
)

// Opts holds the device configuration. It maps one to one onto the ctrl_hum,
// ctrl_meas and config register bit fields.
type Opts struct {
	Mode        Mode
	Temperature Oversampling
	Pressure    Oversampling
	Humidity    Oversampling
	Filter      Filter
	Standby     Standby
}

// DefaultOpts is the configuration applied when New is given a nil *Opts.
var DefaultOpts = Opts{
	Mode:        Normal,
	Temperature: O16x,
	Pressure:    O16x,
	Humidity:    O16x,
	Filter:      FilterOff,
	Standby:     Standby500us,
}

func (o *Opts) validate() error {
	switch o.Mode {
	case Sleep, Forced, Normal:
	default:
		return fmt.Errorf("bmx280: invalid mode 0b%02b", uint8(o.Mode))
	}
	if o.Temperature > O16x || o.Pressure > O16x || o.Humidity > O16x {
		return fmt.Errorf("bmx280: invalid oversampling")
	}
	if o.Filter > Filter16 {
		return fmt.Errorf("bmx280: invalid filter coefficient")
	}
	if o.Standby > Standby20ms {
		return fmt.Errorf("bmx280: invalid standby duration")
	}
	return nil
}

// ctrlMeas packs the temperature/pressure oversampling and the mode into the
// ctrl_meas register layout.
func (o *Opts) ctrlMeas() byte {
	return byte(o.Temperature)<<5 | byte(o.Pressure)<<2 | byte(o.Mode)
}

// config packs the standby duration and filter coefficient into the config
// register layout.
func (o *Opts) config() byte {
	return byte(o.Standby)<<5 | byte(o.Filter)<<2
}

// conversionTime returns the worst-case duration of one measurement cycle for
// the configured oversampling, per the datasheet timing table.
func (o *Opts) conversionTime() time.Duration {
	t := 1250 * time.Microsecond
	if o.Temperature != Off {
		t += time.Duration(1<<(o.Temperature-1)) * 2300 * time.Microsecond
	}
	if o.Pressure != Off {
		t += time.Duration(1<<(o.Pressure-1))*2300*time.Microsecond + 575*time.Microsecond
	}
	if o.Humidity != Off {
		t += time.Duration(1<<(o.Humidity-1))*2300*time.Microsecond + 575*time.Microsecond
	}
	return t
}

// SetConfig applies opts to the device. It can be called at any point in the
// session and is idempotent.
//
// The register writes happen in a fixed order: the device is first forced
// into sleep mode because the config register is write-protected outside it,
// then ctrl_hum (BME280 only, it latches on the following ctrl_meas write),
// then config, then ctrl_meas which re-enters the requested mode. Writes are
// not read back or retried; the first transport failure is returned.
func (d *Dev) SetConfig(opts *Opts) error {
	if err := opts.validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writeReg(regCtrlMeas, byte(Sleep)); err != nil {
		return fmt.Errorf("bmx280: entering sleep mode: %w", err)
	}
	if d.isBME {
		if err := d.writeReg(regCtrlHum, byte(opts.Humidity)); err != nil {
			return fmt.Errorf("bmx280: writing ctrl_hum: %w", err)
		}
	}
	if err := d.writeReg(regConfig, opts.config()); err != nil {
		return fmt.Errorf("bmx280: writing config: %w", err)
	}
	if err := d.writeReg(regCtrlMeas, opts.ctrlMeas()); err != nil {
		return fmt.Errorf("bmx280: writing ctrl_meas: %w", err)
	}
	d.opts = *opts
	d.halted = false
	return nil
}
