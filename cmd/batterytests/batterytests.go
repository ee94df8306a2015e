package main

import (
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/tigerbot-team/avoidbot/pkg/config"
	"github.com/tigerbot-team/avoidbot/pkg/ina219"
)

var cli struct {
	Config   string        `help:"YAML config file." default:"/cfg/avoidbot.yaml" type:"path"`
	Interval time.Duration `help:"Delay between readings." default:"500ms"`
}

func main() {
	kong.Parse(&cli, kong.Name("batterytests"), kong.UsageOnError())

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Println("Bad config:", err)
		os.Exit(1)
	}
	bc := cfg.Hardware.Battery

	m, err := ina219.Open(bc.Device, bc.Addr)
	if err != nil {
		fmt.Println("Failed to open INA219", err)
		return
	}
	defer m.Close()
	if err := m.Configure(bc.ShuntOhms, bc.MaxCurrentA); err != nil {
		fmt.Println("Failed to configure INA219", err)
		return
	}

	for range time.NewTicker(cli.Interval).C {
		voltage, err := m.BusVoltage()
		fmt.Printf("%.2fV %v ", voltage, err)
		current, err := m.Current()
		fmt.Printf("%.3fA %v ", current, err)
		power, err := m.Power()
		fmt.Printf("%.3fW %v\n", power, err)
	}
}
