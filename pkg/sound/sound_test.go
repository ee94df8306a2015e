package sound

import "testing"

func TestPlayTimesOutWhenBusy(t *testing.T) {
	p := &Player{sounds: make(chan string)}
	if p.Play(Alert) {
		t.Error("nobody is receiving, Play should time out")
	}
}

func TestPlayAfterClose(t *testing.T) {
	p := &Player{sounds: make(chan string)}
	p.Close()
	if p.Play(Alert) {
		t.Error("Play on a closed player should fail")
	}
}

func TestPlayHandsOver(t *testing.T) {
	p := &Player{sounds: make(chan string)}
	got := make(chan string, 1)
	go func() { got <- <-p.sounds }()
	for !p.Play(Startup) {
	}
	if s := <-got; s != Startup {
		t.Errorf("got %q, expected %q", s, Startup)
	}
}
