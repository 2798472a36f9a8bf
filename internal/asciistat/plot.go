// Package asciistat draws latency distributions as ASCII box plots on a
// logarithmic time axis.
//
//    Login:          -------[---M----]----|--)}>
//     Menu:    ---[--M-]--|-)}>
//            -----+----+-------+----+-----------+----+-------+----+---
//                 1ms  2ms    5ms  10ms        20ms 50ms   100ms
//
// The 25% to 75% range is enclosed in brackets, M marks the median and
// the remaining symbols mark the 90, 95, 98 and 99 percentiles.
package asciistat

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/montanaflynn/stats"
)

var symbols = []struct {
	p float64
	r rune
}{
	{50, 'M'},
	{25, '['},
	{75, ']'},
	{98, '}'},
	{99, '>'},
	{90, '|'},
	{95, ')'},
}

// Legend explains the symbols used by Plot.
const Legend = "Percentiles:  [=25,  M=50,  ]=75,  |=90,  )=95,  }=98,  >=99"

// Series is a named set of latencies.
type Series struct {
	Name      string
	Latencies []time.Duration
}

func (s Series) micros() stats.Float64Data {
	d := make(stats.Float64Data, len(s.Latencies))
	for i, l := range s.Latencies {
		d[i] = math.Max(1, float64(l/time.Microsecond))
	}
	return d
}

// Plot writes one box plot per series to w followed by the time axis.
// The full plot including the labels has the given width.
func Plot(w io.Writer, series []Series, width int) error {
	labelLen := 0
	var min, max float64 = math.MaxFloat64, 0
	data := make([]stats.Float64Data, len(series))
	for i, s := range series {
		if n := len(s.Name); n > labelLen {
			labelLen = n
		}
		data[i] = s.micros()
		if len(data[i]) == 0 {
			continue
		}
		lo, _ := data[i].Min()
		hi, _ := data[i].Max()
		min, max = math.Min(min, lo), math.Max(max, hi)
	}
	if max == 0 {
		_, err := fmt.Fprintln(w, "no latencies to plot")
		return err
	}

	lo, hi := roundDown(int64(min)), roundUp(int64(max))
	if lo == hi {
		hi *= 10
	}
	dWidth := width - labelLen - 5
	if dWidth < 10 {
		return fmt.Errorf("plot width %d too small", width)
	}
	logmin := math.Log(float64(lo))
	logRange := math.Log(float64(hi)) - logmin
	screen := func(x float64) int {
		i := int((math.Log(x)-logmin)/logRange*float64(dWidth-1) + 0.5)
		if i < 0 {
			return 0
		} else if i >= dWidth {
			return dWidth - 1
		}
		return i
	}

	ew := &errWriter{w: w}
	for i, s := range series {
		ew.printf("%*s:  %s\n", labelLen, s.Name, box(data[i], screen, dWidth))
	}
	axis, labels := scale(lo, hi, logRange, screen, dWidth)
	ew.printf("%*s %s\n", labelLen, "", axis)
	ew.printf("%*s %s\n", labelLen, "", labels)
	return ew.err
}

func box(d stats.Float64Data, screen func(float64) int, dWidth int) string {
	if len(d) == 0 {
		return "no data"
	}
	b := make([]rune, dWidth)
	for i := range b {
		b[i] = ' '
	}
	lo, _ := d.Min()
	hi, _ := d.Max()
	for i := screen(lo); i <= screen(hi); i++ {
		b[i] = '-'
	}
	for _, sym := range symbols {
		q, err := d.Percentile(sym.p)
		if err != nil {
			continue
		}
		b[screen(q)] = sym.r
	}
	return string(b)
}

// scale draws the axis from lo to hi microseconds with ticks at 1, 2
// and 5 times the powers of ten. Minor ticks are labeled only on short
// ranges.
func scale(lo, hi int64, logRange float64, screen func(float64) int, dWidth int) (string, string) {
	b := make([]rune, dWidth+4) // 2 extra on left and right
	t := make([]rune, dWidth+4)
	for i := range b {
		b[i] = '-'
		t[i] = ' '
	}
	for x := int64(1); x <= hi; x *= 10 {
		for _, m := range []int64{1, 2, 5} {
			v := m * x
			if v < lo || v > hi {
				continue
			}
			i := screen(float64(v)) + 2
			b[i] = '+'
			if m != 1 && logRange >= 4 {
				continue
			}
			label := []rune(durationLabel(v))
			start := i - len(label)/2
			if start < 0 || start+len(label) > len(t) || !blank(t[max(0, start-1):min(len(t), start+len(label)+1)]) {
				continue
			}
			copy(t[start:], label)
		}
	}
	return string(b), string(t)
}

func blank(r []rune) bool {
	for _, c := range r {
		if c != ' ' {
			return false
		}
	}
	return true
}

// durationLabel formats x microseconds.
func durationLabel(x int64) string {
	switch {
	case x < 1e3:
		return fmt.Sprintf("%dµs", x)
	case x < 1e6:
		return fmt.Sprintf("%dms", x/1e3)
	case x < 60e6:
		return fmt.Sprintf("%ds", x/1e6)
	}
	return (time.Duration(x) * time.Microsecond).String()
}

func roundUp(v int64) int64 {
	logv := math.Log10(float64(v))
	lvi := math.Floor(logv)
	lvr := logv - lvi
	var f int64
	switch {
	case lvr < 0.002:
		f = 1
	case lvr < 0.301:
		f = 2
	case lvr < 0.698:
		f = 5
	default:
		f = 10
	}
	return f * int64(math.Pow10(int(lvi)))
}

func roundDown(v int64) int64 {
	logv := math.Log10(float64(v))
	lvi := math.Floor(logv)
	lvr := logv - lvi
	var f int64
	switch {
	case lvr > 0.698:
		f = 5
	case lvr > 0.301:
		f = 2
	default:
		f = 1
	}
	return f * int64(math.Pow10(int(lvi)))
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, a ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, a...)
}
