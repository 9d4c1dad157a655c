package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/osvaldoandrade/geoscope/internal/backoff"
	"github.com/osvaldoandrade/geoscope/internal/metrics"
	"github.com/osvaldoandrade/geoscope/internal/tracing"
	"github.com/osvaldoandrade/geoscope/pkg/domain"
)

// WebhookService delivers the completion notification to the callback URL
// registered on the task. Transport errors and 429/5xx responses are retried
// with exponential backoff; other rejections are final. The caller can
// always poll the report endpoint instead, so exhausted retries only log.
type WebhookService interface {
	NotifyCompleted(ctx context.Context, task *domain.AnalysisTask, report *domain.BatchReport)
}

type webhookService struct {
	client      *http.Client
	logger      *slog.Logger
	secret      string
	maxAttempts int
	retryBase   time.Duration
}

func NewWebhookService(logger *slog.Logger, secret string, timeout time.Duration) WebhookService {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &webhookService{
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
		secret:      secret,
		maxAttempts: 3,
		retryBase:   500 * time.Millisecond,
	}
}

func (w *webhookService) NotifyCompleted(ctx context.Context, task *domain.AnalysisTask, report *domain.BatchReport) {
	if task == nil || strings.TrimSpace(task.Webhook) == "" {
		return
	}

	payload := map[string]any{
		"eventType": "analysis.completed",
		"taskId":    task.ID,
		"status":    task.Status,
		"reportUrl": "/v1/geoscope/analyses/" + task.ID + "/report",
		"sentAt":    time.Now().UTC().Format(time.RFC3339),
	}
	if report != nil {
		payload["totalPrompts"] = report.TotalPrompts
		payload["successfulQueries"] = report.SuccessfulQueries
		payload["brandMentionRate"] = report.BrandMentionRate
		payload["domainMentionRate"] = report.DomainMentionRate
	}
	body, _ := json.Marshal(payload)

	for attempt := 0; attempt < w.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoff.Delay("exponential", w.retryBase, 8*w.retryBase, attempt-1, nil)
			select {
			case <-ctx.Done():
				w.logger.Warn("webhook delivery abandoned", "task_id", task.ID, "err", ctx.Err())
				return
			case <-time.After(delay):
			}
		}
		retry, err := w.deliver(ctx, task.Webhook, body)
		if err == nil {
			metrics.WebhookDeliveriesTotal.WithLabelValues("success").Inc()
			return
		}
		metrics.WebhookDeliveriesTotal.WithLabelValues("failure").Inc()
		w.logger.Warn("webhook delivery failed", "task_id", task.ID, "attempt", attempt+1, "err", err)
		if !retry {
			return
		}
	}
	w.logger.Warn("webhook delivery gave up", "task_id", task.ID, "attempts", w.maxAttempts)
}

// deliver makes one signed POST. The signature is computed per attempt so
// the timestamp stays fresh.
func (w *webhookService) deliver(ctx context.Context, url string, body []byte) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectHeaders(ctx, req.Header)
	w.addSignature(req, body)

	resp, err := w.client.Do(req)
	if err != nil {
		return true, err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}
	retry = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return retry, fmt.Errorf("receiver returned status %d", resp.StatusCode)
}

func (w *webhookService) addSignature(req *http.Request, body []byte) {
	if strings.TrimSpace(w.secret) == "" {
		return
	}
	ts := time.Now().UTC().Unix()
	mac := hmac.New(sha256.New, []byte(w.secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%d.", ts)))
	_, _ = mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))
	req.Header.Set("X-Geoscope-Timestamp", fmt.Sprintf("%d", ts))
	req.Header.Set("X-Geoscope-Signature", sig)
}
