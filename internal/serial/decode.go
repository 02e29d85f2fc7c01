package serial

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/rc-ledctrl/internal/gpio"
)

// Decode recovers 8N1 bytes from recorded line transitions, sampling each
// bit in its middle. The line is assumed idle high before the first
// transition.
func Decode(trs []gpio.Transition, bit time.Duration) ([]byte, error) {
	if len(trs) == 0 {
		return nil, nil
	}
	level := func(at time.Duration) bool {
		high := true
		for _, tr := range trs {
			if tr.At > at {
				break
			}
			high = tr.High
		}
		return high
	}
	end := trs[len(trs)-1].At

	var out []byte
	for i := 0; i < len(trs); i++ {
		// Find the next falling edge from idle: a start bit.
		if trs[i].High || (i > 0 && !level(trs[i].At-1)) {
			continue
		}
		start := trs[i].At
		if level(start + bit/2) {
			return out, fmt.Errorf("glitch at %v: start bit not held", start)
		}
		var b byte
		for n := 0; n < 8; n++ {
			if level(start + time.Duration(n+1)*bit + bit/2) {
				b |= 1 << n
			}
		}
		stopAt := start + 9*bit + bit/2
		if stopAt > end+bit || !level(stopAt) {
			return out, errors.New("framing error: missing stop bit")
		}
		out = append(out, b)

		// Skip transitions inside this frame.
		for i+1 < len(trs) && trs[i+1].At < start+9*bit {
			i++
		}
	}
	return out, nil
}
