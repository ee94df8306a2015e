package screen

import (
	"context"
	"fmt"
	"image"
	"sort"
	"sync"
	"time"

	"github.com/fogleman/gg"
)

const (
	Width  = 128
	Height = 64

	UpdateInterval = 500 * time.Millisecond
)

type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelErr
)

// Status is what the robot shows on its OLED.
type Status struct {
	Mode         string
	Rule         string
	Range        string
	Left, Right  string
	InvalidCount int
	Maneuver     string
	Battery      string

	notices map[string]Level
}

var (
	lock    sync.Mutex
	current = Status{notices: map[string]Level{}}
)

func SetMode(name string) {
	Update(func(s *Status) { s.Mode = name })
}

// Update applies f to the shared status under the lock.
func Update(f func(s *Status)) {
	lock.Lock()
	defer lock.Unlock()
	f(&current)
}

func SetNotice(msg string, level Level) {
	lock.Lock()
	defer lock.Unlock()
	current.notices[msg] = level
}

func ClearNotice(msg string) {
	lock.Lock()
	defer lock.Unlock()
	delete(current.notices, msg)
}

// Current returns a copy of the shared status.
func Current() Status {
	lock.Lock()
	defer lock.Unlock()
	s := current
	s.notices = make(map[string]Level, len(current.notices))
	for k, v := range current.notices {
		s.notices[k] = v
	}
	return s
}

// Notices returns the active notices, most severe first.
func (s Status) Notices() []string {
	var msgs []string
	for m := range s.notices {
		msgs = append(msgs, m)
	}
	sort.Slice(msgs, func(i, j int) bool {
		li, lj := s.notices[msgs[i]], s.notices[msgs[j]]
		if li != lj {
			return li > lj
		}
		return msgs[i] < msgs[j]
	})
	return msgs
}

// Lines returns the text rows shown on the display.
func (s Status) Lines() []string {
	head := s.Mode
	if s.Battery != "" {
		head += " " + s.Battery
	}
	lines := []string{
		head,
		fmt.Sprintf("R%s %s", s.Range, s.Rule),
		fmt.Sprintf("L%s R%s", s.Left, s.Right),
	}
	if s.InvalidCount > 0 {
		lines = append(lines, fmt.Sprintf("bad range x%d", s.InvalidCount))
	}
	if s.Maneuver != "" {
		lines = append(lines, s.Maneuver)
	}
	return append(lines, s.Notices()...)
}

// Render draws the status as white text on black.
func Render(s Status) image.Image {
	dc := gg.NewContext(Width, Height)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	dc.SetRGB(1, 1, 1)

	const lineHeight = 12
	for i, line := range s.Lines() {
		y := float64((i + 1) * lineHeight)
		if y > Height {
			break
		}
		dc.DrawString(line, 1, y-2)
	}
	if len(s.notices) > 0 {
		DrawWarning(dc)
	}
	return dc.Image()
}

// DrawWarning puts a small warning triangle in the top right corner.
func DrawWarning(dc *gg.Context) {
	dc.Push()
	defer dc.Pop()
	dc.Translate(Width-9, 9)
	dc.DrawRegularPolygon(3, 0, 0, 8, 0)
	dc.Fill()
	dc.SetRGB(0, 0, 0)
	dc.DrawString("!", -2, 4)
}

// Drawer is an attached display such as the SSD1306.
type Drawer interface {
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Halt() error
}

func LoopUpdatingScreen(ctx context.Context, d Drawer) {
	ticker := time.NewTicker(UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = d.Halt()
			return
		case <-ticker.C:
		}
		img := Render(Current())
		if err := d.Draw(img.Bounds(), img, image.Point{}); err != nil {
			fmt.Println("Screen failure: ", err)
			return
		}
	}
}
