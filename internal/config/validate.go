package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBroker(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateRecognizer(); err != nil {
		return err
	}
	if err := c.validateVAD(); err != nil {
		return err
	}
	if c.Callback.TimeoutSeconds <= 0 {
		return errors.New("callback.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateBroker() error {
	if c.Broker.URL == "" {
		return errors.New("broker.url is required. Set SCRIBE_BROKER_URL or edit the config file (create with 'scribe config init')")
	}
	if c.Broker.MaxRetries > 10 {
		return errors.New("broker.max_retries must be at most 10")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.Endpoint == "" {
		return errors.New("storage.endpoint must be set")
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket must be set")
	}
	return nil
}

func (c *Config) validateRecognizer() error {
	switch c.Recognizer.Backend {
	case "whisper_cli", "openai":
	default:
		return fmt.Errorf("recognizer.backend: unsupported value %q (expected whisper_cli or openai)", c.Recognizer.Backend)
	}
	switch c.Recognizer.Mode {
	case "per_segment", "whole_file":
	default:
		return fmt.Errorf("recognizer.mode: unsupported value %q (expected per_segment or whole_file)", c.Recognizer.Mode)
	}
	if c.Recognizer.Backend == "openai" && c.Recognizer.OpenAIAPIKey == "" {
		return errors.New("recognizer.openai_api_key is required when backend is openai. Set OPENAI_API_KEY")
	}
	return nil
}

func (c *Config) validateVAD() error {
	if c.VAD.Aggressiveness < 0 || c.VAD.Aggressiveness > 3 {
		return errors.New("vad.aggressiveness must be between 0 and 3")
	}
	switch c.VAD.FrameMS {
	case 10, 20, 30:
	default:
		return errors.New("vad.frame_ms must be 10, 20, or 30")
	}
	if c.VAD.MaxGapSeconds < 0 {
		return errors.New("vad.max_gap_seconds must not be negative")
	}
	if c.VAD.MaxSegmentSeconds <= 0 {
		return errors.New("vad.max_segment_seconds must be positive")
	}
	return nil
}
