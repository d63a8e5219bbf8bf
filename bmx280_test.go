// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bmx280

import (
	"errors"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

var bus i2c.Bus
var liveDevice bool

const testAddr = uint16(DefaultAddress)

// Playback for initializing a BME280 with DefaultOpts: chip ID probe, soft
// reset, calibration copy status, the three coefficient blocks (values from
// testCal in calibration_test.go), then the configuration writes.
var pbInitBME = []i2ctest.IO{
	{Addr: testAddr, W: []uint8{0xD0}, R: []uint8{0x60}},
	{Addr: testAddr, W: []uint8{0xE0, 0xB6}},
	{Addr: testAddr, W: []uint8{0xF3}, R: []uint8{0x00}},
	{Addr: testAddr, W: []uint8{0x88}, R: testCalTP},
	{Addr: testAddr, W: []uint8{0xA1}, R: testCalH[:1]},
	{Addr: testAddr, W: []uint8{0xE1}, R: testCalH[1:]},
	{Addr: testAddr, W: []uint8{0xF4, 0x00}},
	{Addr: testAddr, W: []uint8{0xF2, 0x05}},
	{Addr: testAddr, W: []uint8{0xF5, 0x00}},
	{Addr: testAddr, W: []uint8{0xF4, 0xB7}},
}

// One data-register burst holding the datasheet worked example raw values:
// pressure 415148, temperature 519888, humidity 26313.
var ioSense = i2ctest.IO{
	Addr: testAddr,
	W:    []uint8{0xF7},
	R:    []uint8{0x65, 0x5A, 0xC0, 0x7E, 0xED, 0x00, 0x66, 0xC9},
}

// Expected compensated values for ioSense with testCal.
const (
	expectedTemperature = physic.ZeroCelsius + 25080*physic.MilliKelvin   // 25.08°C
	expectedPressure    = 100653253906250 * physic.NanoPascal             // 100653.25390625 Pa
	expectedHumidity    = 2760930 * physic.TenthMicroRH                   // 27.6093%
)

func init() {
	var err error

	liveDevice = os.Getenv("BMX280") != ""

	// Make sure periph is initialized.
	if _, err = host.Init(); err != nil {
		fmt.Println(err)
	}

	if liveDevice {
		bus, err = i2creg.Open("")
		if err != nil {
			fmt.Println(err)
		}
		// Add the recorder to dump the data stream when we're using a live device.
		bus = &i2ctest.Record{Bus: bus}
	} else {
		bus = &i2ctest.Playback{DontPanic: true}
	}
}

// getDev returns a device using either a live i2c bus, or a playback bus.
func getDev(t *testing.T, opts *Opts, playbackOps ...[]i2ctest.IO) (*Dev, error) {
	if liveDevice {
		if recorder, ok := bus.(*i2ctest.Record); ok {
			// Clear the operations buffer.
			recorder.Ops = make([]i2ctest.IO, 0, 32)
		}
	} else {
		if len(playbackOps) == 1 {
			pb := bus.(*i2ctest.Playback)
			pb.Ops = playbackOps[0]
			pb.Count = 0
		}
	}
	return New(bus, DefaultAddress, opts)
}

// shutdown dumps the recorder values if we're running a live device.
func shutdown(t *testing.T) {
	if recorder, ok := bus.(*i2ctest.Record); ok {
		t.Logf("%#v", recorder.Ops)
	}
}

func TestSense(t *testing.T) {
	pb := append(append([]i2ctest.IO{}, pbInitBME...), ioSense)
	dev, err := getDev(t, nil, pb)
	if err != nil {
		t.Fatalf("failed to initialize bmx280: %v", err)
	}
	defer shutdown(t)

	if !dev.IsBME280() {
		t.Error("expected a BME280")
	}
	if dev.ChipID() != ChipBME280 {
		t.Errorf("chip ID: got 0x%02x, want 0x%02x", dev.ChipID(), ChipBME280)
	}
	if len(dev.String()) == 0 {
		t.Error("invalid value for String()")
	}

	e := physic.Env{}
	if err := dev.Sense(&e); err != nil {
		t.Fatal(err)
	}
	t.Logf("%8s %10s %9s", e.Temperature, e.Pressure, e.Humidity)

	if !liveDevice {
		if e.Temperature != expectedTemperature {
			t.Errorf("temperature: got %s (%d), want %s (%d)", e.Temperature, e.Temperature, expectedTemperature, expectedTemperature)
		}
		if e.Pressure != expectedPressure {
			t.Errorf("pressure: got %s (%d), want %s (%d)", e.Pressure, e.Pressure, expectedPressure, expectedPressure)
		}
		if e.Humidity != expectedHumidity {
			t.Errorf("humidity: got %s (%d), want %s (%d)", e.Humidity, e.Humidity, expectedHumidity, expectedHumidity)
		}
	}
}

// TestSenseBMP280 initializes the pressure/temperature-only variant: no
// humidity coefficient reads, no ctrl_hum write, a 6 byte data burst, and a
// zero humidity in the result.
func TestSenseBMP280(t *testing.T) {
	if liveDevice {
		t.Skip("playback-only test")
	}
	pb := []i2ctest.IO{
		{Addr: testAddr, W: []uint8{0xD0}, R: []uint8{0x58}},
		{Addr: testAddr, W: []uint8{0xE0, 0xB6}},
		{Addr: testAddr, W: []uint8{0xF3}, R: []uint8{0x00}},
		{Addr: testAddr, W: []uint8{0x88}, R: testCalTP},
		{Addr: testAddr, W: []uint8{0xF4, 0x00}},
		{Addr: testAddr, W: []uint8{0xF5, 0x00}},
		{Addr: testAddr, W: []uint8{0xF4, 0xB7}},
		{Addr: testAddr, W: []uint8{0xF7}, R: []uint8{0x65, 0x5A, 0xC0, 0x7E, 0xED, 0x00}},
	}
	dev, err := getDev(t, nil, pb)
	if err != nil {
		t.Fatalf("failed to initialize bmx280: %v", err)
	}
	if dev.IsBME280() {
		t.Error("expected a BMP280")
	}

	e := physic.Env{}
	if err := dev.Sense(&e); err != nil {
		t.Fatal(err)
	}
	if e.Temperature != expectedTemperature {
		t.Errorf("temperature: got %s, want %s", e.Temperature, expectedTemperature)
	}
	if e.Pressure != expectedPressure {
		t.Errorf("pressure: got %s, want %s", e.Pressure, expectedPressure)
	}
	if e.Humidity != 0 {
		t.Errorf("humidity: got %s, want 0", e.Humidity)
	}

	if _, err := dev.Humidity(); !errors.Is(err, ErrHumidityUnsupported) {
		t.Errorf("Humidity() on a BMP280: got %v, want ErrHumidityUnsupported", err)
	}
}

// TestNoDevice verifies that an unrecognized identity byte reports
// ErrNoDevice without issuing the reset or reading calibration: the playback
// holds only the single identity exchange.
func TestNoDevice(t *testing.T) {
	if liveDevice {
		t.Skip("playback-only test")
	}
	pb := []i2ctest.IO{
		{Addr: testAddr, W: []uint8{0xD0}, R: []uint8{0x00}},
	}
	if _, err := getDev(t, nil, pb); !errors.Is(err, ErrNoDevice) {
		t.Errorf("got %v, want ErrNoDevice", err)
	}
}

// TestCalibrationTimeout verifies the bounded status poll: a chip that never
// clears im_update reports ErrCalibrationTimeout instead of hanging.
func TestCalibrationTimeout(t *testing.T) {
	if liveDevice {
		t.Skip("playback-only test")
	}
	pb := []i2ctest.IO{
		{Addr: testAddr, W: []uint8{0xD0}, R: []uint8{0x60}},
		{Addr: testAddr, W: []uint8{0xE0, 0xB6}},
	}
	for i := 0; i < maxStatusPolls; i++ {
		pb = append(pb, i2ctest.IO{Addr: testAddr, W: []uint8{0xF3}, R: []uint8{0x01}})
	}
	if _, err := getDev(t, nil, pb); !errors.Is(err, ErrCalibrationTimeout) {
		t.Errorf("got %v, want ErrCalibrationTimeout", err)
	}
}

func TestBadAddress(t *testing.T) {
	if _, err := New(bus, 0x10, nil); err == nil {
		t.Error("expected an error for an unsupported address")
	}
}

// TestForcedMode configures one-shot conversions and verifies Sense rewrites
// ctrl_meas to trigger each one before reading the data registers.
func TestForcedMode(t *testing.T) {
	if liveDevice {
		t.Skip("playback-only test")
	}
	opts := DefaultOpts
	opts.Mode = Forced
	pb := append(append([]i2ctest.IO{}, pbInitBME[:9]...),
		i2ctest.IO{Addr: testAddr, W: []uint8{0xF4, 0xB5}},
		i2ctest.IO{Addr: testAddr, W: []uint8{0xF4, 0xB5}},
		ioSense,
	)
	dev, err := getDev(t, &opts, pb)
	if err != nil {
		t.Fatalf("failed to initialize bmx280: %v", err)
	}
	temp, err := dev.Temperature()
	if err != nil {
		t.Fatal(err)
	}
	if temp != expectedTemperature {
		t.Errorf("temperature: got %s, want %s", temp, expectedTemperature)
	}
}

func TestSenseContinuous(t *testing.T) {
	readCount := 3
	pb := append([]i2ctest.IO{}, pbInitBME...)
	for i := 0; i < readCount; i++ {
		pb = append(pb, ioSense)
	}
	// Halt puts the chip to sleep.
	pb = append(pb, i2ctest.IO{Addr: testAddr, W: []uint8{0xF4, 0xB4}})

	dev, err := getDev(t, nil, pb)
	if err != nil {
		t.Fatalf("failed to initialize bmx280: %v", err)
	}
	defer shutdown(t)

	if _, err = dev.SenseContinuous(time.Millisecond); err == nil {
		t.Error("expected an error for an interval below the device sample rate")
	}

	ch, err := dev.SenseContinuous(50 * time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = dev.SenseContinuous(50 * time.Millisecond); err == nil {
		t.Error("expected an error for a concurrent SenseContinuous")
	}

	got := 0
	for e := range ch {
		got++
		t.Log(e)
		if !liveDevice && e.Temperature != expectedTemperature {
			t.Errorf("temperature: got %s, want %s", e.Temperature, expectedTemperature)
		}
		if got == readCount {
			if err := dev.Halt(); err != nil {
				t.Error(err)
			}
		}
	}
	if got < readCount {
		t.Errorf("expected %d readings, received %d", readCount, got)
	}
}

func TestAltitude(t *testing.T) {
	// Sea-level pressure equal to the measured pressure is altitude zero.
	if alt := AltitudeAt(101325*physic.Pascal, 101325*physic.Pascal); alt != 0 {
		t.Errorf("altitude at sea level: got %s, want 0", alt)
	}
	// Zero pressure is physically degenerate but must stay defined.
	if alt := AltitudeAt(0, 101325*physic.Pascal); alt != 44330*physic.Metre {
		t.Errorf("altitude at zero pressure: got %s, want 44330m", alt)
	}
	// The datasheet example pressure against standard sea level.
	alt := AltitudeAt(expectedPressure, 101325*physic.Pascal)
	got := float64(alt) / float64(physic.Metre)
	if math.Abs(got-56.078) > 0.01 {
		t.Errorf("altitude: got %.3fm, want 56.078m", got)
	}
}

func TestPrecision(t *testing.T) {
	dev := Dev{isBME: true}
	e := physic.Env{}
	dev.Precision(&e)
	if e.Temperature != 10*physic.MilliKelvin {
		t.Errorf("temperature precision: got %d, want %d", e.Temperature, 10*physic.MilliKelvin)
	}
	if e.Pressure != 3906250*physic.NanoPascal {
		t.Errorf("pressure precision: got %d, want %d", e.Pressure, 3906250*physic.NanoPascal)
	}
	if e.Humidity != 97*physic.TenthMicroRH {
		t.Errorf("humidity precision: got %d, want %d", e.Humidity, 97*physic.TenthMicroRH)
	}
	bmp := Dev{}
	bmp.Precision(&e)
	if e.Humidity != 0 {
		t.Error("a BMP280 does not measure humidity")
	}
}
