package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// ErrInvalid is returned when configuration values are out of range
var ErrInvalid = errors.New("invalid configuration")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			messages := make([]string, 0, len(fieldErrors))
			for _, fe := range fieldErrors {
				messages = append(messages, fe.Namespace()+" failed '"+fe.Tag()+"' check")
			}
			return errors.Wrap(ErrInvalid, strings.Join(messages, "; "))
		}
		return errors.Wrap(ErrInvalid, err.Error())
	}
	if c.Processing.CardHeight < c.Processing.CardWidth {
		return errors.Wrap(ErrInvalid, "processing.card_height must not be less than processing.card_width")
	}
	return nil
}

// ValidateScanning ensures the configuration has a detector for scanning commands.
func (c *Config) ValidateScanning() error {
	if c.Detector.URL == "" && c.Detector.Replay == "" {
		return errors.Wrap(ErrInvalid, "detector.url or detector.replay must be set")
	}
	if c.Matching.Catalogue == "" {
		return errors.Wrap(ErrInvalid, "matching.catalogue must be set")
	}
	return nil
}
