// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bmx280

// calibration holds the factory-programmed compensation coefficients. They
// are read once after the soft reset and never change.
type calibration struct {
	t1     uint16
	t2, t3 int16

	p1                             uint16
	p2, p3, p4, p5, p6, p7, p8, p9 int16

	h1     uint8
	h2     int16
	h3     uint8
	h4, h5 int16
	h6     int8
}

// newCalibration decodes the raw coefficient blocks. tp is the 24 byte block
// at 0x88. h is nil for a BMP280; for a BME280 it is the byte at 0xA1
// followed by the 7 bytes at 0xE1.
//
// The 16-bit coefficients are stored little-endian on the chip, with the
// first coefficient of each family unsigned and the rest signed. H4 and H5
// are 12-bit values sharing the byte at 0xE5: H4 is the signed byte at 0xE4
// shifted left 4 with the low nibble of 0xE5, H5 is the signed byte at 0xE6
// shifted left 4 with the high nibble of 0xE5.
func newCalibration(tp, h []byte) (c calibration) {
	c.t1 = uint16(tp[0]) | uint16(tp[1])<<8
	c.t2 = int16(tp[2]) | int16(tp[3])<<8
	c.t3 = int16(tp[4]) | int16(tp[5])<<8

	c.p1 = uint16(tp[6]) | uint16(tp[7])<<8
	c.p2 = int16(tp[8]) | int16(tp[9])<<8
	c.p3 = int16(tp[10]) | int16(tp[11])<<8
	c.p4 = int16(tp[12]) | int16(tp[13])<<8
	c.p5 = int16(tp[14]) | int16(tp[15])<<8
	c.p6 = int16(tp[16]) | int16(tp[17])<<8
	c.p7 = int16(tp[18]) | int16(tp[19])<<8
	c.p8 = int16(tp[20]) | int16(tp[21])<<8
	c.p9 = int16(tp[22]) | int16(tp[23])<<8

	if len(h) == 8 {
		c.h1 = h[0]
		c.h2 = int16(h[1]) | int16(h[2])<<8
		c.h3 = h[3]
		c.h4 = int16(int8(h[4]))<<4 | int16(h[5]&0x0F)
		c.h5 = int16(int8(h[6]))<<4 | int16(h[5]>>4)
		c.h6 = int8(h[7])
	}
	return c
}

// compensateTemp returns the temperature in centi-°C (an output of 5123
// equals 51.23°C) and the fine-resolution temperature that the pressure and
// humidity compensations require.
//
// raw has 20 bits of resolution. 32-bit signed fixed point, per datasheet
// section "Compensation formulas".
func (c *calibration) compensateTemp(raw int32) (int32, int32) {
	var1 := (((raw >> 3) - (int32(c.t1) << 1)) * int32(c.t2)) >> 11
	var2 := (((((raw >> 4) - int32(c.t1)) * ((raw >> 4) - int32(c.t1))) >> 12) * int32(c.t3)) >> 14
	tFine := var1 + var2
	return (tFine*5 + 128) >> 8, tFine
}

// compensatePressure returns the pressure in Pa with 8 fractional bits (an
// output of 24674867 equals 24674867/256 = 96386.2 Pa).
//
// raw has 20 bits of resolution. 64-bit signed fixed point. When the first
// intermediate term is exactly zero the function returns 0 instead of
// dividing by it; that 0 is a degenerate-case marker, not a measured vacuum,
// and callers cannot distinguish it from a true 0 Pa output.
func (c *calibration) compensatePressure(raw, tFine int32) uint32 {
	var1 := int64(tFine) - 128000
	var2 := var1 * var1 * int64(c.p6)
	var2 += (var1 * int64(c.p5)) << 17
	var2 += int64(c.p4) << 35
	var1 = ((var1 * var1 * int64(c.p3)) >> 8) + ((var1 * int64(c.p2)) << 12)
	var1 = ((int64(1)<<47 + var1) * int64(c.p1)) >> 33
	if var1 == 0 {
		return 0
	}
	p := int64(1048576 - raw)
	p = ((p<<31 - var2) * 3125) / var1
	var1 = (int64(c.p9) * (p >> 13) * (p >> 13)) >> 25
	var2 = (int64(c.p8) * p) >> 19
	p = ((p + var1 + var2) >> 8) + int64(c.p7)<<4
	return uint32(p)
}

// compensateHumidity returns the relative humidity in %RH in Q22.10 format
// (an output of 47445 equals 47445/1024 = 46.333%).
//
// raw has 16 bits of resolution. 32-bit signed fixed point. The intermediate
// is clamped to [0, 419430400], the chip's documented valid output envelope;
// calibration edge cases can otherwise push it out of range.
func (c *calibration) compensateHumidity(raw, tFine int32) uint32 {
	v := tFine - 76800
	v = (((raw<<14 - int32(c.h4)<<20 - int32(c.h5)*v) + 16384) >> 15) *
		(((((((v*int32(c.h6))>>10)*(((v*int32(c.h3))>>11)+32768))>>10)+2097152)*int32(c.h2) + 8192) >> 14)
	v -= (((v >> 15) * (v >> 15)) >> 7) * int32(c.h1) >> 4
	if v < 0 {
		v = 0
	}
	if v > 419430400 {
		v = 419430400
	}
	return uint32(v >> 12)
}
