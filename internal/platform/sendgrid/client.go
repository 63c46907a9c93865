package sendgrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/schoolhub/backend/internal/platform/logger"
	"github.com/schoolhub/backend/internal/utils"
)

const defaultBaseURL = "https://api.sendgrid.com"

type Client interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	ToEmail  string
	ToName   string
	Subject  string
	TextBody string
}

type Config struct {
	APIKey    string
	BaseURL   string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

func ConfigFromEnv(log *logger.Logger) Config {
	return Config{
		APIKey:    utils.GetEnv("SENDGRID_API_KEY", "", log),
		BaseURL:   utils.GetEnv("SENDGRID_BASE_URL", defaultBaseURL, log),
		FromEmail: utils.GetEnv("SENDGRID_FROM_EMAIL", "", log),
		FromName:  utils.GetEnv("SENDGRID_FROM_NAME", "", log),
		Timeout:   time.Duration(utils.GetEnvAsInt("SENDGRID_TIMEOUT_SECONDS", 30, log)) * time.Second,
	}
}

type client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing SENDGRID_API_KEY")
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, fmt.Errorf("missing SENDGRID_FROM_EMAIL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &client{
		log:  log.With("client", "sendgrid"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv(log))
}

// Send posts one plain-text mail through the v3 send endpoint.
func (c *client) Send(ctx context.Context, msg Message) error {
	payload := map[string]interface{}{
		"personalizations": []map[string]interface{}{{
			"to": []map[string]string{{"email": msg.ToEmail, "name": msg.ToName}},
		}},
		"from":    map[string]string{"email": c.cfg.FromEmail, "name": c.cfg.FromName},
		"subject": msg.Subject,
		"content": []map[string]string{{"type": "text/plain", "value": msg.TextBody}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}
	return nil
}
