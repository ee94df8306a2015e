package screen

import (
	"context"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"
)

func resetStatus() {
	lock.Lock()
	current = Status{notices: map[string]Level{}}
	lock.Unlock()
}

func TestStatusLines(t *testing.T) {
	resetStatus()
	SetMode("Avoid mode")
	Update(func(s *Status) {
		s.Rule = "cruise"
		s.Range = "42.0cm"
		s.Left, s.Right = "99", "89"
	})
	SetNotice("NO OLED", LevelWarn)
	SetNotice("RANGE FAULT", LevelErr)

	lines := Current().Lines()
	expected := []string{"Avoid mode", "R42.0cm cruise", "L99 R89", "RANGE FAULT", "NO OLED"}
	if len(lines) != len(expected) {
		t.Fatalf("got lines %q, expected %q", lines, expected)
	}
	for i := range expected {
		if lines[i] != expected[i] {
			t.Errorf("line %d = %q, expected %q", i, lines[i], expected[i])
		}
	}

	Update(func(s *Status) { s.Battery = "7.9V" })
	if l := Current().Lines()[0]; l != "Avoid mode 7.9V" {
		t.Errorf("first line = %q, expected the battery voltage after the mode", l)
	}

	ClearNotice("RANGE FAULT")
	if n := Current().Notices(); len(n) != 1 || n[0] != "NO OLED" {
		t.Errorf("unexpected notices after clear: %v", n)
	}
}

func TestCurrentIsACopy(t *testing.T) {
	resetStatus()
	SetNotice("A", LevelInfo)
	s := Current()
	ClearNotice("A")
	if len(s.Notices()) != 1 {
		t.Error("clearing a notice should not affect an earlier copy")
	}
}

func TestRender(t *testing.T) {
	resetStatus()
	SetMode("Avoid mode")
	img := Render(Current())
	if img.Bounds() != image.Rect(0, 0, Width, Height) {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	lit := 0
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			if c := color.GrayModel.Convert(img.At(x, y)).(color.Gray); c.Y > 128 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("expected some text to be drawn")
	}
}

type fakeDrawer struct {
	lock   sync.Mutex
	frames int
	halted bool
}

func (f *fakeDrawer) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.frames++
	return nil
}

func (f *fakeDrawer) Halt() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.halted = true
	return nil
}

func TestLoopUpdatingScreen(t *testing.T) {
	resetStatus()
	d := &fakeDrawer{}
	ctx, cancel := context.WithTimeout(context.Background(), UpdateInterval*3)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		LoopUpdatingScreen(ctx, d)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not exit")
	}

	d.lock.Lock()
	defer d.lock.Unlock()
	if d.frames < 1 {
		t.Error("expected at least one frame")
	}
	if !d.halted {
		t.Error("display should be halted on exit")
	}
}
