package fixture

import (
	dspcore "github.com/cwbudde/algo-dsp/dsp/core"

	"github.com/cwbudde/algo-approx"
	"github.com/cwbudde/fretdetect/dsp"
)

// pluckString is a simplified digital waveguide string: a delay line with a
// one-pole loop-loss filter and a dispersion allpass, adapted down from this
// lineage's physically modeled piano string to a single-excitation plucked
// string suitable for synthesizing labeled test captures.
type pluckString struct {
	sampleRate float32
	dl         *dsp.DelayLine
	delay      float32

	reflection   float32
	lowpassCoeff float32
	loopState    float32

	dispersionCoeff float32
	dispersionX1    float32
	dispersionY1    float32
}

func newPluckString(sampleRate int, freq float32) *pluckString {
	s := &pluckString{
		sampleRate:   float32(sampleRate),
		reflection:   0.996,
		lowpassCoeff: 0.15,
	}
	s.delay = s.sampleRate / freq
	intDelay := int(s.delay)
	if intDelay < 2 {
		intDelay = 2
	}
	s.dl = dsp.NewDelayLine(intDelay + 4)
	return s
}

func (s *pluckString) setDispersion(amount float32) {
	if amount < 0 {
		amount = 0
	}
	if amount > 1 {
		amount = 1
	}
	s.dispersionCoeff = -0.7 * amount
}

// pluck excites the string with a triangular impulse at the given fractional
// position along its length, simulating a finger or pick attack.
func (s *pluckString) pluck(amplitude float32, position float32) {
	if position < 0.01 {
		position = 0.01
	}
	if position > 0.99 {
		position = 0.99
	}
	size := s.dl.Size()
	offset := int(float32(size) * position)
	width := int(float32(size) * (0.05 + 0.2*position))
	if width < 4 {
		width = 4
	}
	if width > size-1 {
		width = size - 1
	}
	for i := 0; i < width; i++ {
		ramp := (float32(i)/float32(width-1) - 0.5) * 2.0
		if ramp < 0 {
			ramp = -ramp
		}
		shape := 1.0 - ramp
		s.dl.AddAt(offset+i, amplitude*shape)
	}
}

func (s *pluckString) process() float32 {
	delayed := s.dl.ReadFractional(s.delay)
	dispersed := s.processDispersion(delayed)
	looped := s.processLoopLoss(dispersed)
	s.dl.Write(looped)
	return delayed
}

func (s *pluckString) processLoopLoss(input float32) float32 {
	lp := (1.0-s.lowpassCoeff)*input + s.lowpassCoeff*s.loopState
	lp = float32(dspcore.FlushDenormals(float64(lp)))
	s.loopState = lp
	return float32(dspcore.FlushDenormals(float64(lp * s.reflection)))
}

func (s *pluckString) processDispersion(input float32) float32 {
	a := s.dispersionCoeff
	if a == 0 {
		return input
	}
	y := -a*input + s.dispersionX1 + a*s.dispersionY1
	s.dispersionX1 = input
	s.dispersionY1 = y
	return y
}

const ln2 = 0.69314718055994530942

// pow2Approx mirrors this lineage's fast power-of-two approximation; it's
// fine here because the amplitude envelope it shapes is not a precision
// invariant, unlike theory.SemitoneToFrequency's round trip.
func pow2Approx(x float32) float32 {
	return approx.FastExp(x * ln2)
}

// PluckedString synthesizes a single note attack at freq Hz using a
// digital waveguide string, with an exponential amplitude envelope and a
// small fixed inharmonicity, for use as a labeled detect/calibrate fixture.
func PluckedString(sampleRate int, freq float32, durationSec float64, amplitude float32) []float32 {
	n := int(float64(sampleRate) * durationSec)
	out := make([]float32, n)
	if n == 0 || freq <= 0 {
		return out
	}

	str := newPluckString(sampleRate, freq)
	str.setDispersion(0.05)
	str.pluck(amplitude, 0.18)

	decayPerSecond := float32(-2.0) // envelope shaves roughly 2 "halvings" worth of loudness per second
	for i := range out {
		t := float32(i) / str.sampleRate
		envelope := pow2Approx(decayPerSecond * t)
		out[i] = str.process() * envelope
	}
	return out
}
