package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBroker()
	c.normalizeRecognizer()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeBroker() {
	c.Broker.URL = strings.TrimSpace(c.Broker.URL)
	if c.Broker.HeartbeatSeconds <= 0 {
		c.Broker.HeartbeatSeconds = defaultBrokerHeartbeat
	}
	if c.Broker.ReconnectDelaySeconds <= 0 {
		c.Broker.ReconnectDelaySeconds = defaultBrokerReconnectDelay
	}
	if c.Broker.RetryDelayMS <= 0 {
		c.Broker.RetryDelayMS = defaultRetryDelayMS
	}
	if c.Broker.MaxRetries < 0 {
		c.Broker.MaxRetries = defaultMaxRetries
	}
}

func (c *Config) normalizeRecognizer() {
	c.Recognizer.Backend = strings.ToLower(strings.TrimSpace(c.Recognizer.Backend))
	c.Recognizer.Mode = strings.ToLower(strings.TrimSpace(c.Recognizer.Mode))
	c.Recognizer.Model = strings.TrimSpace(c.Recognizer.Model)
	c.Recognizer.DefaultLanguage = strings.ToLower(strings.TrimSpace(c.Recognizer.DefaultLanguage))
	if c.Recognizer.BeamSize <= 0 {
		c.Recognizer.BeamSize = defaultBeamSize
	}
	if c.Recognizer.SentenceSplitChars <= 0 {
		c.Recognizer.SentenceSplitChars = defaultSentenceSplitChars
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return home + trimmed[1:], nil
	}
	return trimmed, nil
}
