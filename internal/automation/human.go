package automation

import (
	"math"
	"math/rand"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Pointer, scroll and typing micro-behaviors. These run inside automation
// actions so every UI interaction carries some motion noise; the between-
// iteration pacing lives in internal/pacing.

func sleepRange(min, max time.Duration) {
	if max <= min {
		time.Sleep(min)
		return
	}
	time.Sleep(min + time.Duration(rand.Int63n(int64(max-min))))
}

// humanClick scrolls the element into view, moves the pointer along a bezier
// path and clicks with a reaction-time gap between press and release.
func humanClick(p *rod.Page, el *rod.Element) error {
	_ = el.ScrollIntoView()
	sleepRange(200*time.Millisecond, 500*time.Millisecond)

	shape, err := el.Shape()
	if err != nil || len(shape.Quads) == 0 {
		return el.Click("left", 1)
	}
	quad := shape.Quads[0]
	minX, maxX := quad[0], quad[0]
	minY, maxY := quad[1], quad[1]
	for i := 0; i < len(quad); i += 2 {
		minX = math.Min(minX, quad[i])
		maxX = math.Max(maxX, quad[i])
		minY = math.Min(minY, quad[i+1])
		maxY = math.Max(maxY, quad[i+1])
	}
	// A point inside the middle of the element, never dead center.
	tx := minX + (maxX-minX)*(0.3+rand.Float64()*0.4)
	ty := minY + (maxY-minY)*(0.3+rand.Float64()*0.4)

	fw, fh := viewportSize(p)
	movePointer(p, float64(fw/2), float64(fh/2), tx, ty)
	sleepRange(40*time.Millisecond, 120*time.Millisecond)

	down := proto.InputDispatchMouseEvent{
		Type: proto.InputDispatchMouseEventTypeMousePressed,
		X:    tx, Y: ty, Button: proto.InputMouseButtonLeft, ClickCount: 1,
	}
	if err := down.Call(p); err != nil {
		return el.Click("left", 1)
	}
	sleepRange(30*time.Millisecond, 90*time.Millisecond)
	up := proto.InputDispatchMouseEvent{
		Type: proto.InputDispatchMouseEventTypeMouseReleased,
		X:    tx, Y: ty, Button: proto.InputMouseButtonLeft, ClickCount: 1,
	}
	return up.Call(p)
}

// movePointer walks a cubic bezier from (fx,fy) to (tx,ty) with jitter and
// eased speed.
func movePointer(p *rod.Page, fx, fy, tx, ty float64) {
	dist := math.Hypot(tx-fx, ty-fy)
	steps := 25 + int(dist/30) + rand.Intn(10)
	cx1 := fx + (tx-fx)/3 + float64(rand.Intn(80)-40)
	cy1 := fy + (ty-fy)/3 + float64(rand.Intn(80)-40)
	cx2 := fx + 2*(tx-fx)/3 + float64(rand.Intn(80)-40)
	cy2 := fy + 2*(ty-fy)/3 + float64(rand.Intn(80)-40)

	for i := 0; i <= steps; i++ {
		t := easeInOut(float64(i) / float64(steps))
		x := cubicBezier(fx, cx1, cx2, tx, t) + float64(rand.Intn(3)-1)
		y := cubicBezier(fy, cy1, cy2, ty, t) + float64(rand.Intn(3)-1)
		_ = proto.InputDispatchMouseEvent{
			Type: proto.InputDispatchMouseEventTypeMouseMoved, X: x, Y: y,
		}.Call(p)
		d := 6 + rand.Intn(8)
		if i < 4 || i > steps-4 {
			d += 4
		}
		time.Sleep(time.Duration(d) * time.Millisecond)
	}
}

// humanType enters text rune by rune with variable rhythm and an occasional
// corrected typo.
func humanType(el *rod.Element, text string) error {
	for i, r := range text {
		if rand.Float64() < 0.02 && i > 3 {
			_ = el.Input(nearbyKey(r))
			sleepRange(80*time.Millisecond, 180*time.Millisecond)
			_ = el.Input("\b")
			sleepRange(100*time.Millisecond, 250*time.Millisecond)
		}
		if err := el.Input(string(r)); err != nil {
			return err
		}
		base := 30
		switch {
		case r == ' ' || r == ',' || r == '.':
			base = 60
		case i < 8:
			base = 45
		}
		sleepRange(time.Duration(base)*time.Millisecond, time.Duration(base+40)*time.Millisecond)
		if rand.Float64() < 0.04 {
			sleepRange(200*time.Millisecond, 600*time.Millisecond)
		}
	}
	return nil
}

// humanScroll scrolls in uneven chunks with reading pauses, occasionally
// scrolling back up.
func humanScroll(p *rod.Page) {
	steps := 3 + rand.Intn(4)
	for i := 0; i < steps; i++ {
		px := 300 + rand.Intn(500)
		_, _ = p.Eval(`(dy) => window.scrollBy({top: dy, behavior: 'smooth'})`, px)
		sleepRange(300*time.Millisecond, 800*time.Millisecond)
		if rand.Float64() < 0.35 {
			sleepRange(700*time.Millisecond, 1800*time.Millisecond)
		}
	}
	if rand.Float64() < 0.4 {
		_, _ = p.Eval(`(dy) => window.scrollBy({top: dy, behavior: 'smooth'})`, -(100 + rand.Intn(150)))
		sleepRange(300*time.Millisecond, 700*time.Millisecond)
	}
}

func viewportSize(p *rod.Page) (int, int) {
	w, h := 1400, 900
	if dims, err := p.Eval(`() => ({width: window.innerWidth, height: window.innerHeight})`); err == nil {
		if v := dims.Value.Get("width").Int(); v > 0 {
			w = v
		}
		if v := dims.Value.Get("height").Int(); v > 0 {
			h = v
		}
	}
	return w, h
}

func easeInOut(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

func cubicBezier(p0, p1, p2, p3, t float64) float64 {
	return math.Pow(1-t, 3)*p0 +
		3*math.Pow(1-t, 2)*t*p1 +
		3*(1-t)*math.Pow(t, 2)*p2 +
		math.Pow(t, 3)*p3
}

var nearbyKeys = map[rune][]rune{
	'a': {'s', 'q', 'w'},
	'e': {'w', 'r', 'd'},
	'i': {'u', 'o', 'k'},
	'o': {'i', 'p', 'l'},
	's': {'a', 'd', 'w'},
	't': {'r', 'y', 'g'},
}

func nearbyKey(r rune) string {
	if opts, ok := nearbyKeys[r]; ok {
		return string(opts[rand.Intn(len(opts))])
	}
	opts := []rune{'a', 'e', 'i', 'o', 'u', 'n', 't', 'r'}
	return string(opts[rand.Intn(len(opts))])
}
