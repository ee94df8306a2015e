package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/tigerbot-team/avoidbot/pkg/clock"
	"github.com/tigerbot-team/avoidbot/pkg/config"
	"github.com/tigerbot-team/avoidbot/pkg/drive"
	"github.com/tigerbot-team/avoidbot/pkg/hardware"
)

var cli struct {
	Config string        `help:"YAML config file." default:"/cfg/avoidbot.yaml" type:"path"`
	Pulse  time.Duration `help:"How long each command drives before braking, 0 to hold until the next command." default:"1s"`
	Dummy  bool          `help:"Simulate the hardware."`
}

func main() {
	kong.Parse(&cli, kong.Name("motortests"), kong.UsageOnError())

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Println("Bad config:", err)
		os.Exit(1)
	}
	var hw hardware.Interface
	if cli.Dummy {
		hw = hardware.NewDummy(clock.Real{})
	} else {
		hw, err = hardware.New(cfg.Hardware, clock.Real{})
		if err != nil {
			fmt.Println("Failed to initialise hardware:", err)
			os.Exit(1)
		}
	}
	defer hw.Shutdown()

	fmt.Println(
		`Commands:
    f <duty> [<right-duty>]  # Both wheels forward
    b <duty> [<right-duty>]  # Both wheels backward
    l <duty>                 # Spin left
    r <duty>                 # Spin right
    s                        # Brake

<duty>  Duty cycle 0-99`)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nFailed to read stdin: ", err)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		duties := make([]float64, 0, 2)
		bad := false
		for _, p := range parts[1:] {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				fmt.Println("Expected float, not ", p)
				bad = true
				break
			}
			duties = append(duties, v)
		}
		if bad {
			continue
		}
		if parts[0] != "s" && len(duties) == 0 {
			fmt.Println("Not enough parameters")
			continue
		}
		var cmd drive.Command
		switch parts[0] {
		case "f":
			cmd = drive.Straight(duties[0], last(duties))
		case "b":
			cmd = drive.Reverse(duties[0], last(duties))
		case "l":
			cmd = drive.SpinLeft(duties[0])
		case "r":
			cmd = drive.SpinRight(duties[0])
		case "s":
			cmd = drive.Stop()
		default:
			fmt.Println("Unknown command", parts[0])
			continue
		}
		cmd = cmd.Clamped(drive.MaxDuty)
		fmt.Println("Driving", cmd)
		if err := hw.Drive(cmd); err != nil {
			fmt.Println("Failed to drive motors: ", err)
			return
		}
		if cli.Pulse > 0 && !cmd.IsStop() {
			time.Sleep(cli.Pulse)
			if err := hw.Drive(drive.Stop()); err != nil {
				fmt.Println("Failed to brake: ", err)
				return
			}
		}
	}
}

func last(v []float64) float64 {
	return v[len(v)-1]
}
