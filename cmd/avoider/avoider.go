package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/tigerbot-team/avoidbot/pkg/avoidmode"
	"github.com/tigerbot-team/avoidbot/pkg/clock"
	"github.com/tigerbot-team/avoidbot/pkg/config"
	"github.com/tigerbot-team/avoidbot/pkg/hardware"
	"github.com/tigerbot-team/avoidbot/pkg/pausemode"
	"github.com/tigerbot-team/avoidbot/pkg/screen"
	"github.com/tigerbot-team/avoidbot/pkg/sound"
	"github.com/tigerbot-team/avoidbot/pkg/testmode"
)

type Mode interface {
	Name() string
	StartupSound() string
	Start(ctx context.Context)
	Stop()
}

var cli struct {
	Config  string `help:"YAML config file; missing keys keep their defaults." default:"/cfg/avoidbot.yaml" type:"path"`
	Dummy   bool   `help:"Simulate the hardware (open floor, motors logged)."`
	Stepped bool   `help:"Run maneuvers one step per cycle and keep watching the range finder."`
	Paused  bool   `help:"Start in pause mode; send SIGUSR1 to move to the next mode."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("avoider"),
		kong.Description("Obstacle avoiding robot controller."),
		kong.UsageOnError(),
	)

	fmt.Println("---- avoidbot ----")
	fmt.Println("GOMAXPROCS", runtime.GOMAXPROCS(0))

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Println("Bad config:", err)
		os.Exit(1)
	}
	if cli.Stepped {
		cfg.Loop.Execution = avoidmode.Stepped
	}
	if err := cfg.WriteInUse(config.InUsePath(cli.Config)); err != nil {
		fmt.Println(err)
	}

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())

	// Hook Ctrl-C etc.
	registerSignalHandlers(cancel)

	clk := clock.Real{}
	var hw hardware.Interface
	if cli.Dummy {
		hw = hardware.NewDummy(clk)
	} else {
		realHW, err := hardware.New(cfg.Hardware, clk)
		if err != nil {
			fmt.Println("Failed to initialise hardware:", err)
			os.Exit(1)
		}
		realHW.Start(ctx)
		hw = realHW
	}
	defer func() {
		fmt.Println("Zeroing motors for shut down")
		hw.Shutdown()
		time.Sleep(100 * time.Millisecond)
	}()

	hw.PlaySound(sound.Startup)

	allModes := []Mode{
		avoidmode.New(hw, clk, cfg.Loop, cfg.Policy, cfg.Motion),
		pausemode.New(hw),
		testmode.New(hw, clk, cfg.Motion),
	}
	activeModeIdx := 0
	if cli.Paused {
		activeModeIdx = 1
	}
	activeMode := allModes[activeModeIdx]
	fmt.Printf("----- %s -----\n", activeMode.Name())
	screen.SetMode(activeMode.Name())
	activeMode.Start(ctx)

	switchMode := func(delta int) {
		fmt.Println("Mode switch", delta)
		activeMode.Stop()
		fmt.Println("Mode switch: active mode stopped", delta)
		activeModeIdx += delta
		activeModeIdx = (activeModeIdx + len(allModes)) % len(allModes)
		activeMode = allModes[activeModeIdx]
		fmt.Printf("----- %s -----\n", activeMode.Name())
		screen.SetMode(activeMode.Name())

		hw.PlaySound(activeMode.StartupSound())

		activeMode.Start(ctx)
		fmt.Println("Mode switch done.")
	}

	nextMode := make(chan os.Signal, 1)
	signal.Notify(nextMode, syscall.SIGUSR1)
	watchdog := time.NewTicker(5 * time.Second)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("Context done, stopping active mode and shutting down")
			activeMode.Stop()
			return
		case <-nextMode:
			switchMode(1)
		case <-watchdog.C:
			fmt.Println("Main loop still running")
		}
	}
}

func registerSignalHandlers(cancelFunc context.CancelFunc) {
	// Hook Ctrl-C to cause shut down.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		log.Println("Signal: ", s)
		cancelFunc()
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()
}
