package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// DedupStrategies lists the accepted values for dedup.strategy.
var DedupStrategies = []string{"exact_url", "title_similarity"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	if err := c.validateDedup(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.APIBind != "" {
		if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
			return fmt.Errorf("paths.api_bind must be host:port: %w", err)
		}
	}
	return nil
}

func (c *Config) validateProcessing() error {
	if c.Processing.ChunkSize < 1 || c.Processing.ChunkSize > maxChunkSize {
		return fmt.Errorf("processing.chunk_size must be between 1 and %d", maxChunkSize)
	}
	if c.Processing.ItemWorkers < 1 || c.Processing.ItemWorkers > maxItemWorkers {
		return fmt.Errorf("processing.item_workers must be between 1 and %d", maxItemWorkers)
	}
	return nil
}

func (c *Config) validateDedup() error {
	valid := false
	for _, strategy := range DedupStrategies {
		if c.Dedup.Strategy == strategy {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("dedup.strategy must be one of %s", strings.Join(DedupStrategies, ", "))
	}
	if c.Dedup.TitleThreshold <= 0 || c.Dedup.TitleThreshold > 1 {
		return errors.New("dedup.title_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.WebhookURL != "" {
		parsed, err := url.Parse(c.Notifications.WebhookURL)
		if err != nil {
			return fmt.Errorf("notifications.webhook_url: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return errors.New("notifications.webhook_url must use http or https")
		}
	}
	if c.Notifications.RedisAddr != "" && c.Notifications.RedisChannel == "" {
		return errors.New("notifications.redis_channel must be set when redis_addr is configured")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}
