// Package ina219 reads bus voltage and current from a TI INA219 power
// monitor over I2C.
package ina219

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"
)

const (
	DefaultAddr = 0x41

	RegConfig      = 0
	RegShuntV      = 1
	RegBusV        = 2
	RegPower       = 3
	RegCurrent     = 4
	RegCalibration = 5

	BusVoltageLSB = 0.004
)

// Registers is the subset of an I2C device the monitor needs.
type Registers interface {
	ReadReg(reg byte, buf []byte) error
	WriteReg(reg byte, buf []byte) error
	Close() error
}

type INA219 struct {
	currentLSB float64
	dev        Registers
}

func Open(deviceFile string, addr int) (*INA219, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "opening INA219 at 0x%x on %s", addr, deviceFile)
	}
	return New(dev), nil
}

func New(dev Registers) *INA219 {
	return &INA219{dev: dev}
}

// Configure programs the calibration register for the given shunt and the
// largest current expected through it.
func (m *INA219) Configure(shuntOhms, maxCurrentA float64) error {
	if shuntOhms <= 0 || maxCurrentA <= 0 {
		return errors.Errorf("bad INA219 calibration: shunt %vΩ, max %vA", shuntOhms, maxCurrentA)
	}
	m.currentLSB = maxCurrentA / (1 << 15)
	cval := CalibrationValue(m.currentLSB, shuntOhms)
	return errors.Wrap(m.dev.WriteReg(RegCalibration, []byte{byte(cval >> 8), byte(cval)}),
		"writing INA219 calibration")
}

func (m *INA219) BusVoltage() (float64, error) {
	raw, err := m.read16(RegBusV)
	if err != nil {
		return 0, err
	}
	return float64(raw>>3) * BusVoltageLSB, nil
}

// Current is only meaningful after Configure.
func (m *INA219) Current() (float64, error) {
	raw, err := m.read16(RegCurrent)
	if err != nil {
		return 0, err
	}
	return float64(int16(raw)) * m.currentLSB, nil
}

func (m *INA219) Power() (float64, error) {
	raw, err := m.read16(RegPower)
	if err != nil {
		return 0, err
	}
	return float64(raw) * m.currentLSB * 20, nil
}

func (m *INA219) Close() error {
	return m.dev.Close()
}

func (m *INA219) read16(reg byte) (uint16, error) {
	var buf [2]byte
	if err := m.dev.ReadReg(reg, buf[:]); err != nil {
		return 0, errors.Wrapf(err, "reading INA219 register %d", reg)
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

func CalibrationValue(currentLSB, shuntOhms float64) uint16 {
	return uint16(0.04096 / (currentLSB * shuntOhms))
}
