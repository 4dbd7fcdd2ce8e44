// Package hec — клиент HTTP Event Collector: один POST на батч.
package hec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Gunvolt24/kafka2hec/internal/ports"
)

// Проверка, что Client удовлетворяет порту отправки батчей.
var _ ports.BatchSender = (*Client)(nil)

const collectorPath = "/services/collector/event"

// Config — параметры endpoint'а (секция hec конфига).
type Config struct {
	Host       string
	Port       int
	Scheme     string // http|https, по умолчанию https
	Channel    string // UUID канала, заголовок X-Splunk-Request-Channel
	Token      string // заголовок Authorization: Splunk <token>
	SourceType string
	Source     string
	Timeout    time.Duration // потолок одного запроса
}

// Client отправляет батч событий одним POST-запросом.
// Любой исход кроме HTTP 200 — Rejected: решение о повторах
// принимает планировщик, клиент сам не ретраит.
type Client struct {
	url        string
	channel    string
	token      string
	sourceType string
	source     string
	httpc      *http.Client
}

// NewClient — конструктор. Таймаут <= 0 заменяется на 30s.
func NewClient(cfg Config) *Client {
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "https"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		url:        fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)), collectorPath),
		channel:    cfg.Channel,
		token:      cfg.Token,
		sourceType: cfg.SourceType,
		source:     cfg.Source,
		httpc:      &http.Client{Timeout: timeout},
	}
}

// event — конверт HEC. Payload записи не разбирается и уходит строкой.
type event struct {
	Event      string `json:"event"`
	SourceType string `json:"sourcetype,omitempty"`
	Source     string `json:"source,omitempty"`
}

// Send — POST батча. Успех — ровно HTTP 200; иные статусы и транспортные
// ошибки возвращаются как Rejected с причиной.
func (c *Client) Send(ctx context.Context, events [][]byte) ports.Delivery {
	body, err := c.encode(events)
	if err != nil {
		return ports.Rejected(0, fmt.Sprintf("encode batch: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return ports.Rejected(0, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Authorization", "Splunk "+c.token)
	req.Header.Set("X-Splunk-Request-Channel", c.channel)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return ports.Rejected(0, fmt.Sprintf("post: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.Rejected(resp.StatusCode, fmt.Sprintf("hec status %d: %s", resp.StatusCode, readSnippet(resp.Body)))
	}

	// Тело успешного ответа не интересует, но соединение нужно вернуть в пул.
	_, _ = io.Copy(io.Discard, resp.Body)
	return ports.Accepted(resp.StatusCode)
}

// encode — конкатенация JSON-конвертов (HEC принимает события подряд,
// по конверту на строку).
func (c *Client) encode(events [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, payload := range events {
		ev := event{
			Event:      string(payload),
			SourceType: c.sourceType,
			Source:     c.source,
		}
		if err := enc.Encode(ev); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// readSnippet — первые байты тела ответа для причины отказа в логах.
func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return string(bytes.TrimSpace(b))
}
