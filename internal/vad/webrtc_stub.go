//go:build !cgo

package vad

import "errors"

// NewWebRTC is unavailable without cgo.
func NewWebRTC(mode int) (Classifier, error) {
	return nil, errors.New("webrtcvad unavailable (cgo disabled)")
}
