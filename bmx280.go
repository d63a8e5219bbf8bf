// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bmx280

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

const (
	// DefaultAddress is the factory default I²C address.
	DefaultAddress i2c.Addr = 0x76
	// AltAddress is selected by pulling the SDO pin high.
	AltAddress i2c.Addr = 0x77

	// ChipBMP280 is the chip ID of the temperature/pressure variant.
	ChipBMP280 byte = 0x58
	// ChipBME280 is the chip ID of the temperature/pressure/humidity variant.
	ChipBME280 byte = 0x60
)

// Register map. The calibration coefficients live in two blocks: the
// temperature and pressure coefficients are contiguous at 0x88, the humidity
// coefficients of the BME280 are split between 0xA1 and 0xE1..0xE7.
const (
	regCalTP    = 0x88
	regCalH1    = 0xA1
	regCalH2    = 0xE1
	regChipID   = 0xD0
	regReset    = 0xE0
	regCtrlHum  = 0xF2
	regStatus   = 0xF3
	regCtrlMeas = 0xF4
	regConfig   = 0xF5
	regData     = 0xF7

	// Writing this value to regReset triggers a soft reset.
	resetKey = 0xB6
	// Status bit set while the chip copies NVM calibration data to its
	// shadow registers.
	statusImUpdate = 0x01
)

const (
	// The reference implementation polls the im_update bit forever. A stuck
	// device would hang initialization, so the poll is bounded here and
	// reported as ErrCalibrationTimeout instead.
	statusPollInterval = 10 * time.Millisecond
	maxStatusPolls     = 20

	// Wait for the first conversion after applying the configuration.
	firstConversionWait = 100 * time.Millisecond

	minSenseInterval = 10 * time.Millisecond
)

// Dev represents a BMP280 or BME280 sensor.
//
// A Dev is safe for use from multiple goroutines, but the underlying device
// is strictly request/response: every operation holds the device lock for the
// duration of its bus traffic.
type Dev struct {
	d      *i2c.Dev
	name   string
	chipID byte
	isBME  bool
	cal    calibration

	mu       sync.Mutex
	opts     Opts
	halted   bool
	shutdown chan struct{}
	// Fine-resolution temperature from the most recent temperature
	// compensation. Pressure and humidity compensation consume it, so it is
	// refreshed from a fresh temperature reading on every measurement.
	tFine int32
}

// New probes, resets and configures a BMP280/BME280 at the given address and
// returns a device ready for measurements.
//
// addr must be DefaultAddress or AltAddress. If opts is nil, DefaultOpts is
// applied: normal mode, x16 oversampling on all channels, filter off, 0.5ms
// standby.
//
// Initialization failures are terminal for the attempt; New can simply be
// called again.
func New(b i2c.Bus, addr i2c.Addr, opts *Opts) (*Dev, error) {
	switch addr {
	case DefaultAddress, AltAddress:
	default:
		return nil, fmt.Errorf("bmx280: unsupported address 0x%02x", uint16(addr))
	}
	d := &Dev{d: &i2c.Dev{Bus: b, Addr: uint16(addr)}}
	if opts == nil {
		o := DefaultOpts
		opts = &o
	}
	if err := d.init(opts); err != nil {
		return nil, err
	}
	return d, nil
}

// init walks the power-up sequence: probe identity, soft reset, wait for the
// calibration copy, decode the coefficients, apply the configuration.
func (d *Dev) init(opts *Opts) error {
	id, err := d.readReg8(regChipID)
	if err != nil {
		return fmt.Errorf("bmx280: reading chip ID: %w", err)
	}
	switch id {
	case ChipBMP280:
		d.name = "bmp280"
	case ChipBME280:
		d.name = "bme280"
		d.isBME = true
	default:
		return ErrNoDevice
	}
	d.chipID = id

	if err := d.writeReg(regReset, resetKey); err != nil {
		return fmt.Errorf("bmx280: resetting: %w", err)
	}
	time.Sleep(statusPollInterval)
	ready := false
	for i := 0; i < maxStatusPolls; i++ {
		status, err := d.readReg8(regStatus)
		if err != nil {
			return fmt.Errorf("bmx280: reading status: %w", err)
		}
		if status&statusImUpdate == 0 {
			ready = true
			break
		}
		time.Sleep(statusPollInterval)
	}
	if !ready {
		return ErrCalibrationTimeout
	}

	if err := d.readCalibration(); err != nil {
		return err
	}
	if err := d.SetConfig(opts); err != nil {
		return err
	}
	time.Sleep(firstConversionWait)
	return nil
}

// readCalibration reads and decodes the factory coefficient blocks. The
// humidity block only exists on the BME280.
func (d *Dev) readCalibration() error {
	tp := make([]byte, 24)
	if err := d.readReg(regCalTP, tp); err != nil {
		return fmt.Errorf("bmx280: reading calibration: %w", err)
	}
	var h []byte
	if d.isBME {
		h1, err := d.readReg8(regCalH1)
		if err != nil {
			return fmt.Errorf("bmx280: reading calibration: %w", err)
		}
		hx := make([]byte, 7)
		if err := d.readReg(regCalH2, hx); err != nil {
			return fmt.Errorf("bmx280: reading calibration: %w", err)
		}
		h = append([]byte{h1}, hx...)
	}
	d.cal = newCalibration(tp, h)
	return nil
}

// Sense reads temperature, pressure and humidity from the device and writes
// them to env. Implements physic.SenseEnv.
//
// On a BMP280 the humidity is left zero. A pressure of exactly 0 Pa can also
// mean the chip's compensation hit its documented degenerate case (see
// calibration.compensatePressure); treat it as "no reading" rather than
// vacuum.
func (d *Dev) Sense(env *physic.Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sense(env)
}

// sense must be called with d.mu held.
func (d *Dev) sense(env *physic.Env) error {
	env.Temperature = 0
	env.Pressure = 0
	env.Humidity = 0
	switch {
	case d.opts.Mode == Forced:
		// A forced-mode conversion is one-shot: rewriting ctrl_meas triggers
		// the next one.
		if err := d.writeReg(regCtrlMeas, d.opts.ctrlMeas()); err != nil {
			return fmt.Errorf("bmx280: triggering conversion: %w", err)
		}
		d.halted = false
		time.Sleep(d.opts.conversionTime())
	case d.halted:
		// Halt left the chip in sleep mode, re-enter the configured mode.
		if err := d.writeReg(regCtrlMeas, d.opts.ctrlMeas()); err != nil {
			return fmt.Errorf("bmx280: leaving sleep mode: %w", err)
		}
		d.halted = false
		time.Sleep(d.opts.conversionTime())
	}

	// Reading 0xF7..0xFE in one burst keeps the three raw values coherent
	// and lets the temperature be compensated before pressure and humidity.
	// Pressure: 0xF7..0xF9, temperature: 0xFA..0xFC, humidity: 0xFD..0xFE.
	buf := make([]byte, 8)
	if !d.isBME {
		buf = buf[:6]
	}
	if err := d.readReg(regData, buf); err != nil {
		return fmt.Errorf("bmx280: reading data registers: %w", err)
	}

	// 20-bit values left-packed into 24-bit fields.
	pRaw := int32(buf[0])<<12 | int32(buf[1])<<4 | int32(buf[2])>>4
	tRaw := int32(buf[3])<<12 | int32(buf[4])<<4 | int32(buf[5])>>4

	t, tFine := d.cal.compensateTemp(tRaw)
	d.tFine = tFine
	env.Temperature = physic.ZeroCelsius + physic.Temperature(t)*10*physic.MilliCelsius

	p := d.cal.compensatePressure(pRaw, tFine)
	// p has 8 fractional bits of Pascal: 1/256 Pa = 15625/4 µPa.
	env.Pressure = physic.Pressure(p) * 15625 * physic.MicroPascal / 4

	if d.isBME {
		hRaw := int32(buf[6])<<8 | int32(buf[7])
		h := d.cal.compensateHumidity(hRaw, tFine)
		// Convert base 1024 to base 1000.
		env.Humidity = physic.RelativeHumidity(h) * 10000 / 1024 * physic.MicroRH
	}
	return nil
}

// Temperature returns the current compensated temperature.
func (d *Dev) Temperature() (physic.Temperature, error) {
	var env physic.Env
	if err := d.Sense(&env); err != nil {
		return 0, err
	}
	return env.Temperature, nil
}

// Pressure returns the current compensated pressure.
//
// A fresh temperature conversion is performed first; pressure compensation
// depends on it. A returned 0 Pa may be the compensation's degenerate-case
// guard rather than a physical reading.
func (d *Dev) Pressure() (physic.Pressure, error) {
	var env physic.Env
	if err := d.Sense(&env); err != nil {
		return 0, err
	}
	return env.Pressure, nil
}

// Humidity returns the current compensated relative humidity.
//
// Only the BME280 measures humidity; on a BMP280 ErrHumidityUnsupported is
// returned. A fresh temperature conversion is performed first.
func (d *Dev) Humidity() (physic.RelativeHumidity, error) {
	if !d.isBME {
		return 0, ErrHumidityUnsupported
	}
	var env physic.Env
	if err := d.Sense(&env); err != nil {
		return 0, err
	}
	return env.Humidity, nil
}

// Altitude returns the altitude derived from the current pressure reading and
// the supplied sea-level pressure.
//
// The altitude is not measured by the chip. It follows the barometric
// formula 44330·(1−(p/p₀)^0.1903).
func (d *Dev) Altitude(seaLevel physic.Pressure) (physic.Distance, error) {
	p, err := d.Pressure()
	if err != nil {
		return 0, err
	}
	return AltitudeAt(p, seaLevel), nil
}

// AltitudeAt converts an already-measured pressure into an altitude given
// the local sea-level pressure. Purely arithmetic, no device interaction.
func AltitudeAt(p, seaLevel physic.Pressure) physic.Distance {
	atm := float64(p) / (100 * float64(physic.Pascal))
	sl := float64(seaLevel) / (100 * float64(physic.Pascal))
	m := 44330 * (1 - math.Pow(atm/sl, 0.1903))
	return physic.Distance(m * float64(physic.Metre))
}

// SenseContinuous continuously reads from the device and writes the values to
// the returned channel. To terminate the read, call Halt().
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdown != nil {
		return nil, errors.New("bmx280: SenseContinuous already running")
	}
	if interval < minSenseInterval {
		return nil, errors.New("bmx280: sense interval is < device sample rate")
	}
	d.shutdown = make(chan struct{})
	ch := make(chan physic.Env, 16)
	go func(ch chan<- physic.Env) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer close(ch)
		for {
			select {
			case <-d.shutdown:
				d.mu.Lock()
				d.shutdown = nil
				d.mu.Unlock()
				return
			case <-ticker.C:
				env := physic.Env{}
				if err := d.Sense(&env); err == nil {
					ch <- env
				}
			}
		}
	}(ch)
	return ch, nil
}

// Precision returns the smallest change in readings the device can report.
// Implements physic.SenseEnv.
func (d *Dev) Precision(env *physic.Env) {
	// 0.01°C, 1/256 Pa, 1/1024 %RH.
	env.Temperature = 10 * physic.MilliKelvin
	env.Pressure = 15625 * physic.MicroPascal / 4
	if d.isBME {
		env.Humidity = 10000 * physic.MicroRH / 1024
	} else {
		env.Humidity = 0
	}
}

// Halt terminates a SenseContinuous read if one is running and puts the
// device in sleep mode. Implements conn.Resource.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdown != nil {
		close(d.shutdown)
	}
	if !d.halted {
		d.halted = true
		if err := d.writeReg(regCtrlMeas, byte(d.opts.Temperature)<<5|byte(d.opts.Pressure)<<2|byte(Sleep)); err != nil {
			return fmt.Errorf("bmx280: halting: %w", err)
		}
	}
	return nil
}

// ChipID returns the identity register value read during initialization,
// ChipBMP280 or ChipBME280.
func (d *Dev) ChipID() byte {
	return d.chipID
}

// IsBME280 reports whether the detected chip measures humidity.
func (d *Dev) IsBME280() bool {
	return d.isBME
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("%s: %s", d.name, d.d.String())
}

func (d *Dev) readReg(reg byte, b []byte) error {
	return d.d.Tx([]byte{reg}, b)
}

func (d *Dev) readReg8(reg byte) (byte, error) {
	var b [1]byte
	if err := d.d.Tx([]byte{reg}, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Dev) writeReg(reg, value byte) error {
	return d.d.Tx([]byte{reg, value}, nil)
}

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}
