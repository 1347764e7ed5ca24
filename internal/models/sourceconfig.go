package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var ErrInvalidConfig = errors.New("invalid data source config")

// SourceConfig is implemented by every data source config variant.
type SourceConfig interface {
	Kind() SourceType
	Validate() error
}

type DomainChecks struct {
	Uptime bool `json:"uptime"`
	SSL    bool `json:"ssl"`
	Speed  bool `json:"speed"`
}

type DomainConfig struct {
	URL             string       `json:"url"`
	Checks          DomainChecks `json:"checks"`
	IntervalMinutes int          `json:"interval_minutes"`
	MonitoredPages  []string     `json:"monitored_pages,omitempty"`
}

const DefaultCheckIntervalMinutes = 5

func (DomainConfig) Kind() SourceType { return SourceDomain }

func (c DomainConfig) Validate() error {
	if err := validateHTTPURL(c.URL); err != nil {
		return fmt.Errorf("%w: url: %v", ErrInvalidConfig, err)
	}
	if c.IntervalMinutes < 0 {
		return fmt.Errorf("%w: interval_minutes must not be negative", ErrInvalidConfig)
	}
	for _, p := range c.MonitoredPages {
		if err := validateHTTPURL(p); err != nil {
			return fmt.Errorf("%w: monitored page %q: %v", ErrInvalidConfig, p, err)
		}
	}
	return nil
}

// Interval is the check interval with the default applied.
func (c DomainConfig) Interval() time.Duration {
	if c.IntervalMinutes <= 0 {
		return DefaultCheckIntervalMinutes * time.Minute
	}
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// Host returns the hostname of the monitored URL without port.
func (c DomainConfig) Host() string {
	u, err := url.Parse(c.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

type GoogleBusinessConfig struct {
	AccountID  string `json:"account_id"`
	LocationID string `json:"location_id"`
}

func (GoogleBusinessConfig) Kind() SourceType { return SourceGoogleBusiness }

func (c GoogleBusinessConfig) Validate() error {
	if c.LocationID == "" {
		return fmt.Errorf("%w: location_id is required", ErrInvalidConfig)
	}
	return nil
}

type TagManagerConfig struct {
	AccountID   string `json:"account_id"`
	ContainerID string `json:"container_id"`
}

func (TagManagerConfig) Kind() SourceType { return SourceGoogleTagManager }

func (c TagManagerConfig) Validate() error {
	if !strings.HasPrefix(c.ContainerID, "GTM-") {
		return fmt.Errorf("%w: container_id must start with GTM-", ErrInvalidConfig)
	}
	return nil
}

// DecodeSourceConfig unmarshals raw into the variant for t and validates it.
func DecodeSourceConfig(t SourceType, raw []byte) (SourceConfig, error) {
	var cfg SourceConfig
	switch t {
	case SourceDomain:
		var c DomainConfig
		if err := unmarshalConfig(raw, &c); err != nil {
			return nil, err
		}
		cfg = c
	case SourceGoogleBusiness:
		var c GoogleBusinessConfig
		if err := unmarshalConfig(raw, &c); err != nil {
			return nil, err
		}
		cfg = c
	case SourceGoogleTagManager:
		var c TagManagerConfig
		if err := unmarshalConfig(raw, &c); err != nil {
			return nil, err
		}
		cfg = c
	default:
		return nil, fmt.Errorf("%w: unknown source type %q", ErrInvalidConfig, t)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func unmarshalConfig(raw []byte, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: config is empty", ErrInvalidConfig)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must start with http:// or https://")
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}
