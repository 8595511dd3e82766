package detect

import (
	"math"
	"testing"

	"github.com/cwbudde/fretdetect/config"
	"github.com/cwbudde/fretdetect/theory"
)

// fakeReader exposes a fixed byte slice through the ringbuf.Reader
// interface, tracking how many bytes were advanced.
type fakeReader struct {
	data    []byte
	advance int
}

func (f *fakeReader) FillCount() int { return len(f.data) - f.advance }
func (f *fakeReader) View(n int) []byte {
	return f.data[f.advance : f.advance+n]
}
func (f *fakeReader) Advance(n int) { f.advance += n }

func floatsToBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, v := range samples {
		bits := math.Float32bits(v)
		out[i*4+0] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}

func sine(freq float64, sampleRate int, n int, amp float64) []float32 {
	x := make([]float32, n)
	for i := range x {
		x[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return x
}

type recordingConsumer struct {
	notes    []theory.Semitone
	frets    [][]theory.Semitone
	silences int
}

func (c *recordingConsumer) OnNote(note theory.Semitone, frets []theory.Semitone) {
	c.notes = append(c.notes, note)
	fr := make([]theory.Semitone, len(frets))
	copy(fr, frets)
	c.frets = append(c.frets, fr)
}
func (c *recordingConsumer) OnSilence() { c.silences++ }

func newTestState(t *testing.T, sampleRate int) *State {
	t.Helper()
	s, err := NewState(sampleRate, config.Default())
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	return s
}

func TestAnalyzeA440PureSine(t *testing.T) {
	const rate = 44100
	s := newTestState(t, rate)
	samples := sine(440, rate, 2*s.maxPeriod, 0.8)
	r := &fakeReader{data: floatsToBytes(samples)}
	c := &recordingConsumer{}

	if err := s.Analyze(r, c); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(c.notes) != 1 || c.notes[0] != 48 {
		t.Fatalf("notes = %v, want [48]", c.notes)
	}
	if c.frets[0][0] != 5 {
		t.Errorf("frets = %v, want fret 5 on the high E string", c.frets[0])
	}
}

func TestAnalyzeOctaveAndTwelfthHarmonicsStillResolveToFundamental(t *testing.T) {
	const rate = 44100
	s := newTestState(t, rate)
	n := 2 * s.maxPeriod
	samples := make([]float32, n)
	for i := range samples {
		tt := float64(i) / float64(rate)
		samples[i] = float32(0.8*math.Sin(2*math.Pi*440*tt) +
			0.4*math.Sin(2*math.Pi*880*tt) +
			0.2*math.Sin(2*math.Pi*1320*tt))
	}
	r := &fakeReader{data: floatsToBytes(samples)}
	c := &recordingConsumer{}
	if err := s.Analyze(r, c); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(c.notes) != 1 || c.notes[0] != 48 {
		t.Fatalf("notes = %v, want [48] (octave error corrected)", c.notes)
	}
}

func TestAnalyzeOpenLowE(t *testing.T) {
	const rate = 44100
	s := newTestState(t, rate)
	freq, ok := theory.NoteToFrequency("E", 2)
	if !ok {
		t.Fatal("NoteToFrequency(E,2) failed")
	}
	samples := sine(freq, rate, 2*s.maxPeriod, 0.8)
	r := &fakeReader{data: floatsToBytes(samples)}
	c := &recordingConsumer{}
	if err := s.Analyze(r, c); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(c.notes) != 1 || c.notes[0] != 19 {
		t.Fatalf("notes = %v, want [19]", c.notes)
	}
	want := []theory.Semitone{-1, -1, -1, -1, -1, 0}
	for i, v := range want {
		if c.frets[0][i] != v {
			t.Errorf("frets[%d] = %d, want %d", i, c.frets[0][i], v)
		}
	}
}

func TestAnalyzeG3(t *testing.T) {
	const rate = 44100
	s := newTestState(t, rate)
	freq, ok := theory.NoteToFrequency("G", 3)
	if !ok {
		t.Fatal("NoteToFrequency(G,3) failed")
	}
	samples := sine(freq, rate, 2*s.maxPeriod, 0.8)
	r := &fakeReader{data: floatsToBytes(samples)}
	c := &recordingConsumer{}
	if err := s.Analyze(r, c); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(c.notes) != 1 || c.notes[0] != 34 {
		t.Fatalf("notes = %v, want [34]", c.notes)
	}
	want := []theory.Semitone{-1, -1, 0, 5, 10, 15}
	for i, v := range want {
		if c.frets[0][i] != v {
			t.Errorf("frets[%d] = %d, want %d", i, c.frets[0][i], v)
		}
	}
}

func TestAnalyzeAllZeroProducesNoEvent(t *testing.T) {
	const rate = 44100
	s := newTestState(t, rate)
	samples := make([]float32, 2*s.maxPeriod)
	r := &fakeReader{data: floatsToBytes(samples)}
	c := &recordingConsumer{}
	if err := s.Analyze(r, c); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(c.notes) != 0 || c.silences != 0 {
		t.Fatalf("expected no events on an all-zero block fed once, got notes=%v silences=%d", c.notes, c.silences)
	}
}

func TestAnalyzeOutOfRangeFrequencyProducesNoNoteOn(t *testing.T) {
	const rate = 44100
	s := newTestState(t, rate)
	samples := sine(19000, rate, 2*s.maxPeriod, 0.8)
	r := &fakeReader{data: floatsToBytes(samples)}
	c := &recordingConsumer{}
	if err := s.Analyze(r, c); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(c.notes) != 0 {
		t.Fatalf("notes = %v, want none for an out-of-range pitch", c.notes)
	}
}

func TestAnalyzeWithholdsUntilEnoughSamplesAvailable(t *testing.T) {
	const rate = 44100
	s := newTestState(t, rate)
	samples := sine(440, rate, 2*s.maxPeriod-1, 0.8)
	r := &fakeReader{data: floatsToBytes(samples)}
	c := &recordingConsumer{}
	if err := s.Analyze(r, c); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if r.advance != 0 {
		t.Errorf("advance = %d, want 0 (insufficient samples must not consume the ring)", r.advance)
	}
	if len(c.notes) != 0 {
		t.Fatalf("notes = %v, want none", c.notes)
	}
}

func TestAnalyzeStaleTimeoutEmitsSingleSilence(t *testing.T) {
	const rate = 44100
	s := newTestState(t, rate)
	s.lastDetected = 48
	s.droppedSamples = rate + 1

	samples := make([]float32, 2*s.maxPeriod)
	r := &fakeReader{data: floatsToBytes(samples)}
	c := &recordingConsumer{}
	if err := s.Analyze(r, c); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if c.silences != 1 {
		t.Fatalf("silences = %d, want 1", c.silences)
	}
	if s.lastDetected != theory.Invalid {
		t.Errorf("lastDetected = %d, want Invalid", s.lastDetected)
	}
	// The timeout zeroes the counter; the all-zero block then fails the
	// quality gate and adds its own samples.
	if s.droppedSamples != len(samples) {
		t.Errorf("droppedSamples = %d, want %d", s.droppedSamples, len(samples))
	}
}

func TestAnalyzeSameNoteHeldSuppressesRepeatedNoteOn(t *testing.T) {
	const rate = 44100
	s := newTestState(t, rate)
	n := 2 * s.maxPeriod
	c := &recordingConsumer{}

	for i := 0; i < 3; i++ {
		samples := sine(440, rate, n, 0.8)
		r := &fakeReader{data: floatsToBytes(samples)}
		if err := s.Analyze(r, c); err != nil {
			t.Fatalf("Analyze[%d]: %v", i, err)
		}
	}
	if len(c.notes) != 1 {
		t.Fatalf("notes = %v, want exactly one NoteOn across repeated identical blocks", c.notes)
	}
}

func TestAnalyzeReattackAfterAmplitudeDipAndRise(t *testing.T) {
	const rate = 44100
	s := newTestState(t, rate)
	n := 2 * s.maxPeriod
	c := &recordingConsumer{}

	loud := sine(440, rate, n, 0.8)
	r1 := &fakeReader{data: floatsToBytes(loud)}
	if err := s.Analyze(r1, c); err != nil {
		t.Fatalf("Analyze(loud): %v", err)
	}

	quiet := sine(440, rate, n, 0.15)
	r2 := &fakeReader{data: floatsToBytes(quiet)}
	if err := s.Analyze(r2, c); err != nil {
		t.Fatalf("Analyze(quiet): %v", err)
	}

	loudAgain := sine(440, rate, n, 0.8)
	r3 := &fakeReader{data: floatsToBytes(loudAgain)}
	if err := s.Analyze(r3, c); err != nil {
		t.Fatalf("Analyze(loudAgain): %v", err)
	}

	if len(c.notes) != 2 || c.notes[0] != c.notes[1] {
		t.Fatalf("notes = %v, want two NoteOn events for the same note", c.notes)
	}
}

func TestNewStateRejectsNonPositiveSampleRate(t *testing.T) {
	if _, err := NewState(0, config.Default()); err == nil {
		t.Fatal("expected error for sampleRate == 0")
	}
}

func TestAnalyzeWithDCBlockStillResolvesNote(t *testing.T) {
	const rate = 44100
	cfg := config.Default()
	cfg.DCBlock = true
	s, err := NewState(rate, cfg)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	n := 2 * s.maxPeriod
	samples := sine(440, rate, n, 0.8)
	for i := range samples {
		samples[i] += 0.3 // inject a DC offset the filter should remove
	}
	r := &fakeReader{data: floatsToBytes(samples)}
	c := &recordingConsumer{}
	if err := s.Analyze(r, c); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(c.notes) != 1 || c.notes[0] != 48 {
		t.Fatalf("notes = %v, want [48] even with a DC-offset input", c.notes)
	}
}

func TestNewStateRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MinQuality = 2
	if _, err := NewState(44100, cfg); err == nil {
		t.Fatal("expected error for an invalid cfg")
	}
}
