package sound

import (
	"fmt"
	"os"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

const (
	Startup = "/sounds/avoidbotstart.wav"
	Alert   = "/sounds/alert.wav"

	queueTimeout = 10 * time.Millisecond
)

// Player plays wav files one at a time; a new sound cuts off the old one.
type Player struct {
	sounds chan string
}

func Start() *Player {
	p := &Player{sounds: make(chan string)}
	go p.loop()
	return p
}

func (p *Player) loop() {
	defer func() {
		recover()
		for s := range p.sounds {
			fmt.Println("Unable to play", s)
		}
	}()
	sampleRate := beep.SampleRate(44100)
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/5)); err != nil {
		fmt.Println("Failed to open speaker", err)
		for s := range p.sounds {
			fmt.Println("Unable to play", s)
		}
		return
	}
	var ctrl *beep.Ctrl
	var s beep.StreamSeekCloser
	for path := range p.sounds {
		if ctrl != nil {
			speaker.Lock()
			ctrl.Paused = true
			ctrl.Streamer = nil
			speaker.Unlock()
			ctrl = nil
		}
		if s != nil {
			s.Close()
			s = nil
		}

		f, err := os.Open(path)
		if err != nil {
			fmt.Println("Failed to open sound", err)
			continue
		}
		s, _, err = wav.Decode(f)
		if err != nil {
			fmt.Println("Failed to decode sound", err)
			f.Close()
			continue
		}
		ctrl = &beep.Ctrl{Streamer: s}
		speaker.Play(ctrl)
	}
}

// Play queues a sound without blocking the caller for long.  It reports
// whether the player accepted it.
func (p *Player) Play(path string) (ok bool) {
	defer func() {
		if recover() != nil {
			// Already closed.
			ok = false
		}
	}()
	select {
	case p.sounds <- path:
		return true
	case <-time.After(queueTimeout):
		fmt.Println("Timed out trying to play sound: ", path)
		return false
	}
}

func (p *Player) Close() {
	close(p.sounds)
}
