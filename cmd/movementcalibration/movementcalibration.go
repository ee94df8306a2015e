package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/alecthomas/kong"

	"github.com/tigerbot-team/avoidbot/pkg/clock"
	"github.com/tigerbot-team/avoidbot/pkg/config"
	"github.com/tigerbot-team/avoidbot/pkg/hardware"
	"github.com/tigerbot-team/avoidbot/pkg/motion"
)

var cli struct {
	Config   string  `help:"YAML config file." default:"/cfg/avoidbot.yaml" type:"path"`
	Distance float64 `help:"Distance to drive forward (cm)." default:"50"`
	Turns    int     `help:"Number of right turns to time." default:"4"`
	Dummy    bool    `help:"Simulate the hardware."`
}

var scanner *bufio.Scanner

func init() {
	scanner = bufio.NewScanner(os.Stdin)
}

func readFloat(prompt string) float64 {
	fmt.Println(prompt)
	for {
		if !scanner.Scan() {
			panic(scanner.Err())
		}
		v, err := strconv.ParseFloat(scanner.Text(), 64)
		if err == nil {
			return v
		}
		fmt.Printf("error: %v, please try again:\n", err)
	}
}

func main() {
	kong.Parse(&cli, kong.Name("movementcalibration"), kong.UsageOnError())
	fmt.Println("---- Movement Calibration ----")

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Println("Bad config:", err)
		os.Exit(1)
	}

	clk := clock.Real{}
	var hw hardware.Interface
	if cli.Dummy {
		hw = hardware.NewDummy(clk)
	} else {
		hw, err = hardware.New(cfg.Hardware, clk)
		if err != nil {
			fmt.Println("Failed to initialise hardware:", err)
			os.Exit(1)
		}
	}
	defer func() {
		fmt.Println("Zeroing motors for shut down")
		hw.Shutdown()
		time.Sleep(100 * time.Millisecond)
	}()

	// Calibrate open loop.
	cfg.Motion.UsePID = false
	mover := motion.New(cfg.Motion, hw, clk)

	fmt.Printf("Driving forward %.0fcm at %.1fms/cm\n", cli.Distance, cfg.Motion.MSPerCM)
	if err := mover.MoveForward(cli.Distance, 0); err != nil {
		fmt.Println("Move failed:", err)
		return
	}
	measured := readFloat("Enter measured distance (cm):")
	msPerCM, err := motion.CorrectedMSPerCM(cfg.Motion.MSPerCM, cli.Distance, measured)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("motion.ms_per_cm: %.2f\n", msPerCM)

	if cli.Turns <= 0 {
		return
	}

	fmt.Printf("Turning right %d times at %v per turn (%s)\n", cli.Turns, cfg.Motion.TurnDuration, cfg.Motion.TurnStyle)
	for i := 0; i < cli.Turns; i++ {
		if err := mover.TurnRight90(); err != nil {
			fmt.Println("Turn failed:", err)
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	degrees := readFloat("Enter measured total rotation (degrees):")
	turn, err := motion.CorrectedTurnDuration(cfg.Motion.TurnDuration, degrees/float64(cli.Turns))
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("motion.turn_duration: %v\n", turn.Round(time.Millisecond))
}
