package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Environment variables overriding file values
const (
	EnvDetectorURL = "TCGSCAN_DETECTOR_URL"
	EnvCatalogue   = "TCGSCAN_CATALOGUE"
	EnvLogLevel    = "TCGSCAN_LOG_LEVEL"
	EnvMQTTBroker  = "TCGSCAN_MQTT_BROKER"
)

func (c *Config) normalize() error {
	c.applyEnv()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.Detector.URL = strings.TrimRight(strings.TrimSpace(c.Detector.URL), "/")
	c.Matching.Index = strings.ToLower(strings.TrimSpace(c.Matching.Index))
	c.Tracking.Algorithm = strings.ToLower(strings.TrimSpace(c.Tracking.Algorithm))
	if c.Tracking.Algorithm == "best_first" {
		c.Tracking.Algorithm = "best-first"
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) applyEnv() {
	if value, ok := os.LookupEnv(EnvDetectorURL); ok && value != "" {
		c.Detector.URL = value
	}
	if value, ok := os.LookupEnv(EnvCatalogue); ok && value != "" {
		c.Matching.Catalogue = value
	}
	if value, ok := os.LookupEnv(EnvLogLevel); ok && value != "" {
		c.Logging.Level = value
	}
	if value, ok := os.LookupEnv(EnvMQTTBroker); ok && value != "" {
		c.Output.MQTTBroker = value
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Matching.Catalogue, err = expandPath(strings.TrimSpace(c.Matching.Catalogue)); err != nil {
		return errors.Wrap(err, "matching.catalogue")
	}
	if c.Detector.Replay, err = expandPath(strings.TrimSpace(c.Detector.Replay)); err != nil {
		return errors.Wrap(err, "detector.replay")
	}
	if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
		return errors.Wrap(err, "logging.file")
	}
	if c.Output.JSONLines, err = expandPath(strings.TrimSpace(c.Output.JSONLines)); err != nil {
		return errors.Wrap(err, "output.json_lines")
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Level == "warning" {
		c.Logging.Level = "warn"
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}
