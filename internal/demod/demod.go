// Package demod converts raw IQ sample streams into candidate Mode S
// frames: magnitude computation, preamble search and PPM bit slicing.
//
// At 2 Msps one bit spans 2 samples, the preamble spans 16 samples with
// pulses at indices 0, 2, 7 and 9, and a long message occupies 240 samples
// including the preamble.
package demod

import (
	"time"

	"github.com/sirupsen/logrus"
)

const (
	samplesPerBit   = 2
	preambleSamples = 16

	// ShortMsgBits and LongMsgBits are the two Mode S frame lengths.
	ShortMsgBits = 56
	LongMsgBits  = 112

	shortMsgSamples = ShortMsgBits * samplesPerBit
	longMsgSamples  = LongMsgBits * samplesPerBit

	// windowSize is the sample span needed for the longest message.
	windowSize = preambleSamples + longMsgSamples

	// SampleRate the demodulator is designed for.
	SampleRate = 2_000_000
)

// Preamble pulse and gap sample offsets at 2 Msps.
var (
	pulsePositions = [4]int{0, 2, 7, 9}
	gapPositions   = [6]int{1, 3, 4, 5, 6, 8}
	quietPositions = [6]int{10, 11, 12, 13, 14, 15}
)

const (
	// Pulses must exceed gaps by at least this factor.
	minPreambleRatio = 2.0
	// Pulses must agree within ~6 dB (factor 4 in squared magnitude).
	maxPulseSpread = 4.0
	// Initial noise-floor estimate; Reset restores it.
	minSignalLevel = 100.0
	// Noise floor EMA decay.
	noiseFloorAlpha = 0.05
	// Threshold multiplier over the tracked noise floor.
	noiseFloorFactor = 3.0
	minAdaptiveLevel = 50.0
	// Weak-transition handling for bit recovery.
	bitDeltaThreshold = 0.15
	maxUncertainRatio = 0.20
)

var longDFs = map[byte]bool{16: true, 17: true, 18: true, 20: true, 21: true}
var shortDFs = map[byte]bool{0: true, 4: true, 5: true, 11: true}

// magLUT holds the squared magnitude for every (I, Q) byte combination:
// (I-127.5)^2 + (Q-127.5)^2. Squared magnitude is sufficient for the
// relative comparisons the demodulator makes.
var magLUT [256 * 256]float32

func init() {
	for i := 0; i < 256; i++ {
		iv := float32(i) - 127.5
		for q := 0; q < 256; q++ {
			qv := float32(q) - 127.5
			magLUT[i*256+q] = iv*iv + qv*qv
		}
	}
}

// Magnitude converts interleaved unsigned 8-bit IQ pairs to squared
// magnitudes, one value per sample pair.
func Magnitude(raw []byte) []float32 {
	n := len(raw) / 2
	mag := make([]float32, n)
	for i := 0; i < n; i++ {
		mag[i] = magLUT[int(raw[i*2])*256+int(raw[i*2+1])]
	}
	return mag
}

// RawFrame is a demodulated candidate message before CRC validation.
type RawFrame struct {
	Hex         string
	CaptureTime time.Time
	SignalLevel float64
}

// NoiseTracker estimates the noise floor with an exponential moving
// average over window medians, yielding an adaptive preamble threshold.
type NoiseTracker struct {
	floor float32
}

// NewNoiseTracker returns a tracker seeded at the initial noise-floor level.
func NewNoiseTracker() *NoiseTracker {
	return &NoiseTracker{floor: minSignalLevel}
}

// Threshold returns the current adaptive preamble acceptance level.
func (t *NoiseTracker) Threshold() float32 {
	th := t.floor * noiseFloorFactor
	if th < minAdaptiveLevel {
		th = minAdaptiveLevel
	}
	return th
}

// Update folds a magnitude buffer into the noise floor estimate.
func (t *NoiseTracker) Update(mag []float32) {
	if len(mag) < 100 {
		return
	}
	step := len(mag) / 64
	if step < 1 {
		step = 1
	}
	var medians []float32
	for i := 0; i+16 <= len(mag); i += step {
		medians = append(medians, medianOf16(mag[i:i+16]))
	}
	if len(medians) == 0 {
		return
	}
	// 25th percentile of window medians approximates the noise floor.
	sortF32(medians)
	local := medians[len(medians)/4]
	t.floor = (1-noiseFloorAlpha)*t.floor + noiseFloorAlpha*local
}

// Reset restores the initial floor, e.g. after retuning.
func (t *NoiseTracker) Reset() {
	t.floor = minSignalLevel
}

func medianOf16(window []float32) float32 {
	var buf [16]float32
	copy(buf[:], window)
	s := buf[:]
	sortF32(s)
	return s[8]
}

func sortF32(s []float32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// Demodulator scans magnitude buffers for Mode S messages.
type Demodulator struct {
	logger *logrus.Logger
	noise  *NoiseTracker

	// Statistics
	PreamblesFound uint64
	FramesEmitted  uint64
	ShortBuffer    uint64
}

// New creates a demodulator.
func New(logger *logrus.Logger) *Demodulator {
	return &Demodulator{
		logger: logger,
		noise:  NewNoiseTracker(),
	}
}

// CheckPreamble tests for a valid preamble at pos. Accepted when the
// weakest pulse clears the strongest gap by the threshold ratio, the four
// pulses agree within ~6 dB, and the gap floor sits below half the peak.
// Returns the mean pulse magnitude.
func CheckPreamble(mag []float32, pos int, minLevel float32) (float32, bool) {
	if pos+windowSize > len(mag) {
		return 0, false
	}

	var pulseMin, pulseMax, pulseSum float32
	pulseMin = mag[pos+pulsePositions[0]]
	pulseMax = pulseMin
	for _, p := range pulsePositions {
		v := mag[pos+p]
		pulseSum += v
		if v < pulseMin {
			pulseMin = v
		}
		if v > pulseMax {
			pulseMax = v
		}
	}
	pulseAvg := pulseSum / 4

	if pulseAvg < minLevel {
		return 0, false
	}

	var gapMax, gapSum float32
	for _, g := range gapPositions {
		v := mag[pos+g]
		gapSum += v
		if v > gapMax {
			gapMax = v
		}
	}
	gapMean := gapSum / 6

	if pulseMin < minPreambleRatio*gapMax {
		return 0, false
	}
	if pulseMax > maxPulseSpread*pulseMin {
		return 0, false
	}
	if gapMean >= pulseMax/2 {
		return 0, false
	}

	// Quiet zone between preamble and data must stay low.
	quietLimit := pulseAvg * 2 / 3
	for _, q := range quietPositions {
		if mag[pos+q] > quietLimit {
			return 0, false
		}
	}

	return pulseAvg, true
}

// RecoverBits slices nBits PPM bits starting at pos: a bit is 1 when the
// first of its two samples carries more energy than the second. Weak
// transitions repeat the previous bit and are counted as uncertain.
func RecoverBits(mag []float32, pos, nBits int) ([]byte, int) {
	bits := make([]byte, 0, nBits)
	uncertain := 0
	var prev byte

	for i := 0; i < nBits; i++ {
		p := pos + i*samplesPerBit
		if p+1 >= len(mag) {
			break
		}
		high, low := mag[p], mag[p+1]
		signal := high
		if low > signal {
			signal = low
		}

		var bit byte
		delta := high - low
		if delta < 0 {
			delta = -delta
		}
		switch {
		case signal > 0 && delta/signal < bitDeltaThreshold:
			bit = prev
			uncertain++
		case high > low:
			bit = 1
		default:
			bit = 0
		}
		bits = append(bits, bit)
		prev = bit
	}

	return bits, uncertain
}

// BitsToHex packs a bit slice into an uppercase hex string.
func BitsToHex(bits []byte) string {
	const digits = "0123456789ABCDEF"
	out := make([]byte, 0, len(bits)/4)
	for i := 0; i+4 <= len(bits); i += 4 {
		v := bits[i]<<3 | bits[i+1]<<2 | bits[i+2]<<1 | bits[i+3]
		out = append(out, digits[v])
	}
	return string(out)
}

func dfOfBits(bits []byte) byte {
	return bits[0]<<4 | bits[1]<<3 | bits[2]<<2 | bits[3]<<1 | bits[4]
}

// Process scans a magnitude buffer and returns the candidate frames found.
// base is the capture time of the first sample; per-frame timestamps are
// offset by the sample index at the 2 MHz rate.
func (d *Demodulator) Process(mag []float32, base time.Time) []RawFrame {
	d.noise.Update(mag)
	threshold := d.noise.Threshold()

	var frames []RawFrame
	i := 0
	for i+windowSize <= len(mag) {
		signal, ok := CheckPreamble(mag, i, threshold)
		if !ok {
			i++
			continue
		}
		d.PreamblesFound++

		msgStart := i + preambleSamples
		frameTime := base.Add(time.Duration(i) * time.Second / SampleRate)

		// The DF in the first 5 bits decides the message length.
		head, _ := RecoverBits(mag, msgStart, 8)
		if len(head) < 8 {
			d.ShortBuffer++
			break
		}
		df := dfOfBits(head)

		var nBits int
		switch {
		case longDFs[df]:
			nBits = LongMsgBits
		case shortDFs[df]:
			nBits = ShortMsgBits
		default:
			i++
			continue
		}

		bits, uncertain := RecoverBits(mag, msgStart, nBits)
		if len(bits) < nBits || float32(uncertain)/float32(nBits) > maxUncertainRatio {
			i++
			continue
		}

		frames = append(frames, RawFrame{
			Hex:         BitsToHex(bits),
			CaptureTime: frameTime,
			SignalLevel: float64(signal),
		})
		d.FramesEmitted++

		// Advance past the message end so the burst is not re-detected.
		i = msgStart + nBits*samplesPerBit
	}

	return frames
}
