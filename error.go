// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bmx280

import "errors"

var (
	// ErrNoDevice is returned by New when the identity register reads back
	// successfully but the value is neither a BMP280 nor a BME280. It is
	// distinct from a transport failure: the bus worked, the chip is just not
	// one this driver supports.
	ErrNoDevice = errors.New("bmx280: no BMP280/BME280 detected")

	// ErrCalibrationTimeout is returned by New when the chip does not finish
	// copying its calibration data to the shadow registers within the
	// bounded poll. Initialization can be retried from scratch.
	ErrCalibrationTimeout = errors.New("bmx280: timeout waiting for calibration data copy")

	// ErrHumidityUnsupported is returned by Humidity on a BMP280.
	ErrHumidityUnsupported = errors.New("bmx280: humidity requires a BME280")
)
