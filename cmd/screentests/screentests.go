package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"periph.io/x/periph/host"

	"github.com/tigerbot-team/avoidbot/pkg/hardware"
	"github.com/tigerbot-team/avoidbot/pkg/policy"
	"github.com/tigerbot-team/avoidbot/pkg/screen"
	"github.com/tigerbot-team/avoidbot/pkg/ultrasonic"
)

var cli struct {
	Bus string `help:"I2C bus the OLED is on; empty for the first one found."`
}

// Shows a fake status on the OLED.  Each line read from stdin becomes the
// mode name; "!" prefixes it as a warning notice instead.
func main() {
	kong.Parse(&cli, kong.Name("screentests"), kong.UsageOnError())

	if _, err := host.Init(); err != nil {
		fmt.Println("Failed to initialise periph:", err)
		os.Exit(1)
	}
	dev, bus, err := hardware.OpenOLED(hardware.OLEDConfig{Enabled: true, Bus: cli.Bus})
	if err != nil {
		fmt.Println("Failed to open OLED:", err)
		os.Exit(1)
	}
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go screen.LoopUpdatingScreen(ctx, dev)

	screen.Update(func(s *screen.Status) {
		s.Rule = policy.RuleCruise.String()
		s.Range = ultrasonic.At(42).String()
		s.Left, s.Right = "F 45", "F 45"
	})

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nFailed to read stdin: ", err)
			return
		}
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "!") {
			screen.SetNotice(strings.TrimPrefix(line, "!"), screen.LevelWarn)
			continue
		}
		screen.SetMode(line)
	}
}
