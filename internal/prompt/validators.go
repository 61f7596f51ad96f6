package prompt

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jayteealao/colab/internal/validate"
)

func validateRequired(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("this field is required")
	}
	return nil
}

// validateRepoURL allows an empty URL; clone asks for one when it is unset.
func validateRepoURL(value string) error {
	if value == "" {
		return nil
	}
	return validate.RepoURL(value)
}

func validateWebhookURL(value string) error {
	if value == "" {
		return nil
	}

	u, err := url.ParseRequestURI(value)
	if err != nil {
		return fmt.Errorf("invalid URL format")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must start with http:// or https://")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}

func validateDuration(value string) error {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("must be a duration like 30s or 2m")
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateMappingsPath(value string) error {
	if err := validateRequired(value); err != nil {
		return err
	}
	return validate.PathPattern(value)
}
