package audio

import "math"

// SilenceThreshold is the RMS level below which a capture is treated as
// containing no usable speech. Matches typical room noise on consumer mics.
const SilenceThreshold = 0.005

// RMSLevel calculates the root-mean-square energy of PCM-16 audio,
// normalized to 0.0..1.0
func RMSLevel(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}

	var sum float64
	numSamples := len(pcm) / 2

	for i := 0; i < numSamples; i++ {
		// Little-endian 16-bit signed sample
		sample := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
	}

	return math.Sqrt(sum / float64(numSamples))
}

// IsSilent reports whether a finalized capture looks empty. Used to warn the
// clinician before an exchange is attempted; the exchange still happens.
func IsSilent(pcm []byte) bool {
	return RMSLevel(pcm) < SilenceThreshold
}
