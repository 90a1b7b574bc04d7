// Package vad detects speech intervals in a canonical waveform and merges
// them into recognition-sized segments.
package vad

// Classifier labels one fixed-duration PCM frame as speech or non-speech.
// Implementations must accept 16-bit little-endian mono frames at the sample
// rate passed in.
type Classifier interface {
	Process(sampleRate int, frame []byte) (bool, error)
}
