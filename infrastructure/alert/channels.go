package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// LogChannel 把告警写入结构化日志。
type LogChannel struct {
	logger *zap.Logger
}

// NewLogChannel 创建日志告警通道
func NewLogChannel(logger *zap.Logger) *LogChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogChannel{logger: logger.Named("alert")}
}

func (c *LogChannel) Send(_ context.Context, a Alert) error {
	fields := []zap.Field{
		zap.String("level", string(a.Level)),
		zap.String("instrument", a.Instrument),
		zap.Time("at", a.Timestamp),
	}
	for k, v := range a.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	c.logger.Error(a.Message, fields...)
	return nil
}

func (c *LogChannel) Name() string { return "log" }

// WebhookChannel 以 JSON POST 告警（Slack/Lark 兼容的 text 字段）。
type WebhookChannel struct {
	url    string
	client *resty.Client
}

// NewWebhookChannel 创建 webhook 告警通道
func NewWebhookChannel(url string, timeout time.Duration) *WebhookChannel {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookChannel{url: url, client: resty.New().SetTimeout(timeout)}
}

type webhookPayload struct {
	Text       string         `json:"text"`
	Level      Level          `json:"level"`
	Instrument string         `json:"instrument,omitempty"`
	Timestamp  int64          `json:"timestamp"`
	Fields     map[string]any `json:"fields,omitempty"`
}

func (c *WebhookChannel) Send(ctx context.Context, a Alert) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookPayload{
			Text:       fmt.Sprintf("[%s] %s %s", a.Level, a.Instrument, a.Message),
			Level:      a.Level,
			Instrument: a.Instrument,
			Timestamp:  a.Timestamp.UnixMilli(),
			Fields:     a.Fields,
		}).
		Post(c.url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("webhook status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

func (c *WebhookChannel) Name() string { return "webhook" }
