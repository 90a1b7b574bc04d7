//go:build cgo

package vad

import "github.com/visvasity/webrtcvad"

type webrtcClassifier struct {
	vad *webrtcvad.VAD
}

// NewWebRTC builds the WebRTC VAD classifier. Mode ranges from 0 (quality) to
// 3 (aggressive).
func NewWebRTC(mode int) (Classifier, error) {
	vad, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := vad.SetMode(mode); err != nil {
		return nil, err
	}
	return &webrtcClassifier{vad: vad}, nil
}

func (c *webrtcClassifier) Process(sampleRate int, frame []byte) (bool, error) {
	return c.vad.Process(sampleRate, frame)
}
