// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bmx280 controls a Bosch BMP280 or BME280 environmental sensor over
// I²C. The BMP280 measures temperature and barometric pressure; the BME280
// additionally measures relative humidity. The chip variant is detected at
// runtime from the chip ID register.
//
// The bmx280.Dev type implements the physic.SenseEnv interface. The
// physic.Env measurement results contain a temperature, pressure and humidity
// value, though the humidity is left zero for a BMP280.
//
// Readings are compensated on the host using the per-device factory
// calibration coefficients and the integer formulas from the datasheet, so
// two calls with identical register contents produce bit-identical results.
//
// Datasheets:
//
//	https://www.bosch-sensortec.com/media/boschsensortec/downloads/datasheets/bst-bmp280-ds001.pdf
//	https://www.bosch-sensortec.com/media/boschsensortec/downloads/datasheets/bst-bme280-ds002.pdf
package bmx280
