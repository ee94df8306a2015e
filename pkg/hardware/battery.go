package hardware

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/avoidbot/pkg/ina219"
	"github.com/tigerbot-team/avoidbot/pkg/screen"
)

const (
	NoticeBatteryLow      = "BATTERY LOW"
	NoticeBatteryCritical = "BATTERY FLAT"
	NoticeBatteryFault    = "NO BATTERY MON"
)

// BatteryConfig describes the optional INA219 on the motor supply.
type BatteryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Device        string        `yaml:"device"`
	Addr          int           `yaml:"addr"`
	ShuntOhms     float64       `yaml:"shunt_ohms"`
	MaxCurrentA   float64       `yaml:"max_current_a"`
	LowVolts      float64       `yaml:"low_volts"`
	CriticalVolts float64       `yaml:"critical_volts"`
	Interval      time.Duration `yaml:"interval"`
}

// DefaultBatteryConfig suits a 2S LiPo.
func DefaultBatteryConfig() BatteryConfig {
	return BatteryConfig{
		Device:        "/dev/i2c-1",
		Addr:          ina219.DefaultAddr,
		ShuntOhms:     0.1,
		MaxCurrentA:   2,
		LowVolts:      7.0,
		CriticalVolts: 6.6,
		Interval:      time.Second,
	}
}

func (c BatteryConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.CriticalVolts >= c.LowVolts {
		return errors.Errorf("critical_volts (%v) must be below low_volts (%v)", c.CriticalVolts, c.LowVolts)
	}
	if c.Interval <= 0 {
		return errors.Errorf("battery interval must be positive, not %v", c.Interval)
	}
	return nil
}

type Voltmeter interface {
	BusVoltage() (float64, error)
}

// ReportBattery publishes one voltage reading to the screen, raising or
// clearing the battery notices.
func ReportBattery(cfg BatteryConfig, volts float64, err error) {
	if err != nil {
		screen.SetNotice(NoticeBatteryFault, screen.LevelWarn)
		screen.Update(func(s *screen.Status) { s.Battery = "" })
		return
	}
	screen.ClearNotice(NoticeBatteryFault)
	screen.Update(func(s *screen.Status) { s.Battery = fmt.Sprintf("%.1fV", volts) })
	switch {
	case volts < cfg.CriticalVolts:
		screen.ClearNotice(NoticeBatteryLow)
		screen.SetNotice(NoticeBatteryCritical, screen.LevelErr)
	case volts < cfg.LowVolts:
		screen.ClearNotice(NoticeBatteryCritical)
		screen.SetNotice(NoticeBatteryLow, screen.LevelWarn)
	default:
		screen.ClearNotice(NoticeBatteryLow)
		screen.ClearNotice(NoticeBatteryCritical)
	}
}

func LoopMonitoringBattery(ctx context.Context, cfg BatteryConfig, v Voltmeter) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	lastErr := ""
	for {
		volts, err := v.BusVoltage()
		if err != nil && err.Error() != lastErr {
			fmt.Println("HW: Battery read failed:", err)
		}
		if err != nil {
			lastErr = err.Error()
		} else {
			lastErr = ""
		}
		ReportBattery(cfg, volts, err)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func openBattery(cfg BatteryConfig) (*ina219.INA219, error) {
	m, err := ina219.Open(cfg.Device, cfg.Addr)
	if err != nil {
		return nil, err
	}
	if err := m.Configure(cfg.ShuntOhms, cfg.MaxCurrentA); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}
