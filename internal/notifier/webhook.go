package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookPublisher 将变更 POST 到外部 URL（5xx 和网络错误会重试）
type WebhookPublisher struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewWebhookPublisher 创建 webhook 发布器
func NewWebhookPublisher(url string, timeout time.Duration, retries int, logger *zap.Logger) *WebhookPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookPublisher{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

func (p *WebhookPublisher) Publish(ctx context.Context, change Change) error {
	resp, err := p.httpClient.R().
		SetContext(ctx).
		SetBody(change).
		Post(p.url)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	if resp.IsError() {
		p.logger.Warn("Webhook returned error status",
			zap.String("url", p.url),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("household_id", change.HouseholdID),
		)
		return fmt.Errorf("webhook %s returned status %d", p.url, resp.StatusCode())
	}
	return nil
}
