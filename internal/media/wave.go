package media

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"scribe/internal/services"
)

// Waveform holds decoded canonical audio as 16-bit little-endian PCM, the
// frame format the VAD classifier consumes.
type Waveform struct {
	PCM        []byte
	SampleRate int
}

// DurationSeconds returns the waveform length in seconds.
func (w Waveform) DurationSeconds() float64 {
	if w.SampleRate == 0 {
		return 0
	}
	return float64(len(w.PCM)/2) / float64(w.SampleRate)
}

// ReadWaveform decodes a canonical WAV file produced by the Normalizer.
func ReadWaveform(path string) (Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return Waveform{}, services.Wrap(services.ErrNotFound, "detect", "read waveform", path, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Waveform{}, services.Wrap(services.ErrCorrupted, "detect", "decode waveform", path, err)
	}
	if buf == nil || buf.Format == nil {
		return Waveform{}, services.Wrap(services.ErrCorrupted, "detect", "decode waveform", "empty PCM buffer", nil)
	}
	if buf.Format.NumChannels != 1 {
		return Waveform{}, services.Wrap(services.ErrInvalidInput, "detect", "decode waveform",
			fmt.Sprintf("expected mono audio, got %d channels", buf.Format.NumChannels), nil)
	}

	return Waveform{PCM: pcmBytes(buf), SampleRate: buf.Format.SampleRate}, nil
}

func pcmBytes(buf *audio.IntBuffer) []byte {
	pcm := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(clampSample(sample))))
	}
	return pcm
}

func clampSample(v int) int {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}
