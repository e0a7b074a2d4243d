package publishers

import (
	"errors"
	"fmt"
	"strings"
)

// Supported publisher types.
const (
	TypeLog       = "log"
	TypeSQS       = "sqs"
	TypeSNS       = "sns"
	TypeHTTP      = "http"
	TypeGCPPubSub = "gcp_pubsub"

	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 5
)

// PublisherConfig is one publisher entry. Only the block matching Type is read.
type PublisherConfig struct {
	ID        string                    `json:"id" yaml:"id"`
	Type      string                    `json:"type" yaml:"type"`
	Enabled   *bool                     `json:"enabled" yaml:"enabled"`
	SQS       *SQSPublisherConfig       `json:"sqs" yaml:"sqs"`
	SNS       *SNSPublisherConfig       `json:"sns" yaml:"sns"`
	HTTP      *HTTPPublisherConfig      `json:"http" yaml:"http"`
	GCPPubSub *GCPPubSubPublisherConfig `json:"gcp_pubsub" yaml:"gcp_pubsub"`
}

// SQSPublisherConfig holds AWS SQS specific settings.
type SQSPublisherConfig struct {
	QueueURL string `json:"uri" yaml:"uri"`
	Region   string `json:"region" yaml:"region"`
}

// SNSPublisherConfig holds AWS SNS specific settings.
type SNSPublisherConfig struct {
	TopicARN string `json:"topic_arn" yaml:"topic_arn"`
	Region   string `json:"region" yaml:"region"`
}

// GCPPubSubPublisherConfig holds Google Cloud Pub/Sub settings.
// CredentialsFile is optional; application default credentials apply otherwise.
type GCPPubSubPublisherConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// HTTPPublisherConfig holds webhook settings.
type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// EnabledValue returns enabled flag defaulting to true.
func (cfg PublisherConfig) EnabledValue() bool {
	if cfg.Enabled == nil {
		return true
	}
	return *cfg.Enabled
}

func (c SQSPublisherConfig) normalized() *SQSPublisherConfig {
	c.QueueURL = strings.TrimSpace(c.QueueURL)
	c.Region = strings.TrimSpace(c.Region)
	return &c
}

func (c *SQSPublisherConfig) check() error {
	switch {
	case c == nil:
		return errors.New("sqs config required")
	case c.QueueURL == "":
		return errors.New("sqs.uri is required")
	case c.Region == "":
		return errors.New("sqs.region is required")
	}
	return nil
}

func (c SNSPublisherConfig) normalized() *SNSPublisherConfig {
	c.TopicARN = strings.TrimSpace(c.TopicARN)
	c.Region = strings.TrimSpace(c.Region)
	return &c
}

func (c *SNSPublisherConfig) check() error {
	switch {
	case c == nil:
		return errors.New("sns config required")
	case c.TopicARN == "":
		return errors.New("sns.topic_arn is required")
	case c.Region == "":
		return errors.New("sns.region is required")
	}
	return nil
}

func (c GCPPubSubPublisherConfig) normalized() *GCPPubSubPublisherConfig {
	c.ProjectID = strings.TrimSpace(c.ProjectID)
	c.Topic = strings.TrimSpace(c.Topic)
	c.CredentialsFile = strings.TrimSpace(c.CredentialsFile)
	return &c
}

func (c *GCPPubSubPublisherConfig) check() error {
	switch {
	case c == nil:
		return errors.New("gcp_pubsub config required")
	case c.ProjectID == "":
		return errors.New("gcp_pubsub.project_id is required")
	case c.Topic == "":
		return errors.New("gcp_pubsub.topic is required")
	}
	return nil
}

func (c HTTPPublisherConfig) normalized() *HTTPPublisherConfig {
	c.URL = strings.TrimSpace(c.URL)
	c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
	if c.Method == "" {
		c.Method = httpDefaultMethod
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = httpDefaultTimeoutSeconds
	}
	headers := make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			headers[k] = v
		}
	}
	c.Headers = nil
	if len(headers) > 0 {
		c.Headers = headers
	}
	return &c
}

func (c *HTTPPublisherConfig) check() error {
	switch {
	case c == nil:
		return errors.New("http config required")
	case c.URL == "":
		return errors.New("http.url is required")
	}
	return nil
}

// sanitizePublisherConfig returns a trimmed copy; nested blocks are never shared with the input.
func sanitizePublisherConfig(cfg PublisherConfig) PublisherConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))
	if cfg.Enabled == nil {
		def := true
		cfg.Enabled = &def
	}
	if cfg.SQS != nil {
		cfg.SQS = cfg.SQS.normalized()
	}
	if cfg.SNS != nil {
		cfg.SNS = cfg.SNS.normalized()
	}
	if cfg.GCPPubSub != nil {
		cfg.GCPPubSub = cfg.GCPPubSub.normalized()
	}
	if cfg.HTTP != nil {
		cfg.HTTP = cfg.HTTP.normalized()
	}
	return cfg
}

// validatePublisherConfig checks the block required by the publisher type.
func validatePublisherConfig(cfg PublisherConfig) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}

	var err error
	switch cfg.Type {
	case "":
		err = errors.New("type is required")
	case TypeLog:
	case TypeSQS:
		err = cfg.SQS.check()
	case TypeSNS:
		err = cfg.SNS.check()
	case TypeHTTP:
		err = cfg.HTTP.check()
	case TypeGCPPubSub:
		err = cfg.GCPPubSub.check()
	default:
		err = fmt.Errorf("unsupported type %q", cfg.Type)
	}
	if err != nil {
		return fmt.Errorf("publisher %q: %w", cfg.ID, err)
	}
	return nil
}
