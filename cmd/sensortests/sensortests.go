package main

import (
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"periph.io/x/periph/host"

	"github.com/tigerbot-team/avoidbot/pkg/clock"
	"github.com/tigerbot-team/avoidbot/pkg/config"
	"github.com/tigerbot-team/avoidbot/pkg/irsensor"
	"github.com/tigerbot-team/avoidbot/pkg/policy"
	"github.com/tigerbot-team/avoidbot/pkg/ultrasonic"
)

var cli struct {
	Config   string        `help:"YAML config file." default:"/cfg/avoidbot.yaml" type:"path"`
	Interval time.Duration `help:"Delay between snapshots." default:"200ms"`
	Count    int           `help:"Number of snapshots to take, 0 for no limit." default:"0"`
}

// Prints the sensor snapshot and the rule it would select, without driving.
func main() {
	kong.Parse(&cli, kong.Name("sensortests"), kong.UsageOnError())

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Println("Bad config:", err)
		os.Exit(1)
	}
	if _, err := host.Init(); err != nil {
		fmt.Println("Failed to initialise periph:", err)
		os.Exit(1)
	}

	clk := clock.Real{}
	ir, err := irsensor.Open(cfg.Hardware.IR, clk)
	if err != nil {
		fmt.Println("Failed to open IR sensors:", err)
		os.Exit(1)
	}
	sonar, err := ultrasonic.Open(cfg.Hardware.Ultrasonic, clk)
	if err != nil {
		fmt.Println("Failed to open range finder:", err)
		os.Exit(1)
	}

	p := policy.New(cfg.Policy)
	for i := 0; cli.Count == 0 || i < cli.Count; i++ {
		s := policy.Snapshot{CaptureTime: clk.Now(), Obstacles: ir.DetectAll()}
		s.Range = sonar.Measure()
		action := p.Decide(s)
		fmt.Printf("%s %v -> %v\n", s.CaptureTime.Format("15:04:05.000"), s, action)
		time.Sleep(cli.Interval)
	}
}
