// Package telegram delivers pre-formatted alerts to a Telegram chat. It is a
// sink: it never reads monitoring state, only renders and sends what it is
// handed.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"goldwatch/internal/components/assert"
	"goldwatch/internal/components/chrono"
	"goldwatch/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
)

const (
	report_client_send_message    = "client.send-message"
	report_client_test_connection = "client.test-connection"
)

const defaultApiBase = "https://api.telegram.org"

const sendTimeout = 30 * time.Second

type Config struct {
	BotToken                 string `json:"bot_token"`
	ChatId                   string `json:"chat_id"`
	EnableAlerts             bool   `json:"enable_alerts"`
	EnableErrorNotifications bool   `json:"enable_error_notifications"`
	EnableSummaryReports     bool   `json:"enable_summary_reports"`
	// ApiBase overrides the Telegram API host, for tests.
	ApiBase string `json:"api_base"`
}

type Client struct {
	http   *resty.Client
	config Config
	time   chrono.TimeAPI
	tel    telemetry.API
}

func NewClient(config Config, time chrono.TimeAPI, tel telemetry.API) *Client {
	assert.NotEmptyStr(config.BotToken)
	assert.NotEmptyStr(config.ChatId)
	assert.NotNil(time)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("telegram", tel)

	apiBase := config.ApiBase
	if apiBase == "" {
		apiBase = defaultApiBase
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(fmt.Sprintf("%s/bot%s", apiBase, config.BotToken))
	httpClient.SetTimeout(sendTimeout)

	telemetry.InstrumentResty(httpClient, tel)

	return &Client{
		http:   httpClient,
		config: config,
		time:   time,
		tel:    tel,
	}
}

type apiResponse struct {
	Ok     bool `json:"ok"`
	Result struct {
		Username string `json:"username"`
	} `json:"result"`
	Description string `json:"description"`
}

// TestConnection verifies the bot token by calling getMe and returns the
// bot's username.
func (c *Client) TestConnection(ctx context.Context) (string, error) {
	res, err := c.http.R().SetContext(ctx).Get("/getMe")
	if err != nil {
		c.tel.ReportBroken(report_client_test_connection, err)
		return "", fmt.Errorf("telegram getMe: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(res.Body(), &parsed); err != nil {
		c.tel.ReportBroken(report_client_test_connection, fmt.Errorf("parse response: %w", err))
		return "", fmt.Errorf("telegram getMe: %w", err)
	}
	if res.StatusCode() != 200 || !parsed.Ok {
		err := fmt.Errorf("telegram getMe: status %d: %s", res.StatusCode(), parsed.Description)
		c.tel.ReportBroken(report_client_test_connection, err)
		return "", err
	}

	c.tel.ReportDebug("connected to bot", parsed.Result.Username)
	return parsed.Result.Username, nil
}

// SendMessage delivers one Markdown message to the configured chat. Long
// messages are not chunked; that is the caller's problem by contract.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	payload := map[string]any{
		"chat_id":                  c.config.ChatId,
		"text":                     text,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post("/sendMessage")
	if err != nil {
		c.tel.ReportBroken(report_client_send_message, err)
		return fmt.Errorf("telegram sendMessage: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(res.Body(), &parsed); err != nil {
		c.tel.ReportBroken(report_client_send_message, fmt.Errorf("parse response: %w", err))
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	if res.StatusCode() != 200 || !parsed.Ok {
		err := fmt.Errorf("telegram sendMessage: status %d: %s", res.StatusCode(), parsed.Description)
		c.tel.ReportBroken(report_client_send_message, err)
		return err
	}

	return nil
}

// SendStockAlert renders and sends the availability alert for the given
// items. A no-op when there is nothing to report or alerts are disabled.
func (c *Client) SendStockAlert(ctx context.Context, items []StockItem) error {
	if !c.config.EnableAlerts || len(items) == 0 {
		return nil
	}
	return c.SendMessage(ctx, FormatStockAlert(items, c.time.Now()))
}

// SendError reports a monitoring failure to the chat, when enabled.
func (c *Client) SendError(ctx context.Context, message, errContext string) error {
	if !c.config.EnableErrorNotifications {
		return nil
	}
	return c.SendMessage(ctx, FormatErrorNotification(message, errContext, c.time.Now()))
}

// SendSummary reports run totals, when enabled. Runs that found nothing
// available are not reported.
func (c *Client) SendSummary(ctx context.Context, totalBranches, totalProducts, availableCount int, duration time.Duration) error {
	if !c.config.EnableSummaryReports || availableCount == 0 {
		return nil
	}
	return c.SendMessage(ctx, FormatSummaryReport(totalBranches, totalProducts, availableCount, duration, c.time.Now()))
}
