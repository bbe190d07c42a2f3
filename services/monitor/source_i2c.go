// services/monitor/source_i2c.go
package monitor

import (
	"tinygo.org/x/drivers"

	"statusmon-go/errcode"
)

// I2CSource reads a charger status register over I2C and reports one bit of
// it as the binary input. Useful on boards where the charger exposes state
// through a management register instead of a dedicated status pin.
//
// Words are read little-endian (LOW then HIGH), the SMBus word convention.
type I2CSource struct {
	i2c  drivers.I2C
	addr uint16
	reg  byte
	bit  uint8

	w [1]byte
	r [2]byte
}

func NewI2CSource(i2c drivers.I2C, addr uint16, reg byte, bit uint8) (*I2CSource, error) {
	if i2c == nil {
		return nil, &errcode.E{C: errcode.InitFailed, Op: "i2c_source", Msg: "nil bus"}
	}
	if bit > 15 {
		return nil, errcode.InvalidParams
	}
	return &I2CSource{i2c: i2c, addr: addr, reg: reg, bit: bit}, nil
}

func (s *I2CSource) Read() (bool, error) {
	s.w[0] = s.reg
	if err := s.i2c.Tx(s.addr, s.w[:1], s.r[:2]); err != nil {
		return false, &errcode.E{C: errcode.IOError, Op: "i2c_read", Err: err}
	}
	word := uint16(s.r[0]) | uint16(s.r[1])<<8
	return word&(1<<s.bit) != 0, nil
}
