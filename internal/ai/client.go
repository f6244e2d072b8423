// Package ai предоставляет клиент внешнего AI-сервиса: проверку доказательств
// выполнения заданий и генерацию советов по кампаниям.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// UnavailableReason: причина отказа, когда сервис проверки недоступен.
const UnavailableReason = "verification service unavailable"

// FallbackInsights возвращается вместо советов, если сервис недоступен.
const FallbackInsights = "Post consistently, reply to every comment in the first hour, " +
	"and raise the reward per task if completions slow down."

var errNotConfigured = errors.New("ai client not configured")

// Client инкапсулирует HTTP-взаимодействие с AI-сервисом.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// VerificationRequest описывает доказательство выполнения задания.
type VerificationRequest struct {
	TaskTitle string `json:"taskTitle"`
	Platform  string `json:"platform"`
	ProofText string `json:"proofText"`
}

// VerificationResult: решение сервиса проверки.
type VerificationResult struct {
	IsValid         bool   `json:"isValid"`
	Reason          string `json:"reason"`
	ConfidenceScore int    `json:"confidenceScore"`
}

// InsightRequest описывает кампанию, для которой нужны советы.
type InsightRequest struct {
	CampaignTitle string `json:"campaignTitle"`
	Platform      string `json:"platform"`
	Completions   int64  `json:"completions"`
}

type insightResponse struct {
	Text string `json:"text"`
}

// NewClient создаёт HTTP-клиент для обращения к AI-сервису по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// VerifyTask проверяет доказательство. Результат всегда пригоден к использованию:
// при любой ошибке транспорта возвращается отказ с причиной UnavailableReason,
// а сама ошибка отдаётся вторым значением для журналирования.
func (c *Client) VerifyTask(ctx context.Context, req VerificationRequest) (VerificationResult, error) {
	var res VerificationResult
	if err := c.post(ctx, "/api/verify", req, &res); err != nil {
		return VerificationResult{IsValid: false, Reason: UnavailableReason}, err
	}

	if res.ConfidenceScore < 0 {
		res.ConfidenceScore = 0
	}
	if res.ConfidenceScore > 100 {
		res.ConfidenceScore = 100
	}
	return res, nil
}

// GenerateInsights запрашивает советы по кампании. При ошибке возвращает FallbackInsights.
func (c *Client) GenerateInsights(ctx context.Context, req InsightRequest) (string, error) {
	var res insightResponse
	if err := c.post(ctx, "/api/insights", req, &res); err != nil {
		return FallbackInsights, err
	}
	if strings.TrimSpace(res.Text) == "" {
		return FallbackInsights, errors.New("empty insights response")
	}
	return res.Text, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if c == nil || c.baseURL == "" {
		return errNotConfigured
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
