// File path: internal/notify/mailgun.go

// Package notify sends best-effort email through the Mailgun HTTP API.
// Delivery failures are a logged outcome, never a propagated error: nothing
// in the conversion pipeline may fail because a courtesy mail bounced.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CLARIAH/cattle-druid/internal/common"
)

type Mailer struct {
	httpClient *http.Client
	baseURL    string
	domain     string
	apiKey     string
	sender     string
}

// NewMailer returns a Mailgun-backed mailer, or nil when domain or key are
// unset. A nil Mailer is valid and does nothing.
func NewMailer(baseURL, domain, apiKey, sender string, timeout time.Duration) *Mailer {
	if strings.TrimSpace(domain) == "" || strings.TrimSpace(apiKey) == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if strings.TrimSpace(sender) == "" {
		sender = "cattle <cattle@" + domain + ">"
	}
	return &Mailer{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		domain:     domain,
		apiKey:     apiKey,
		sender:     sender,
	}
}

// NotifyGraphs tells the account owner which stems were converted and
// uploaded. All failures are swallowed after logging.
func (m *Mailer) NotifyGraphs(ctx context.Context, email, account string, stems []string) {
	logger := common.Logger()
	if m == nil {
		logger.Debug("notify: mailer not configured, skipping notification")
		return
	}
	if strings.TrimSpace(email) == "" {
		logger.Debug("notify: no recipient on event, skipping notification")
		return
	}

	body := fmt.Sprintf(
		"Dear %s,\n\nyour following files have been converted to linked data and uploaded to your dataset:\n\n  %s\n\nRegards,\ncattle\n",
		displayName(account, email), strings.Join(stems, "\n  "))
	form := url.Values{}
	form.Set("from", m.sender)
	form.Set("to", email)
	form.Set("subject", "New linked data graphs have been created")
	form.Set("text", body)

	endpoint := fmt.Sprintf("%s/%s/messages", m.baseURL, url.PathEscape(m.domain))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		logger.Warn("notify: building mail request failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		logger.Warn("notify: sending mail failed", "recipient", email, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn("notify: mail rejected", "recipient", email, "status", resp.StatusCode)
		return
	}
	logger.Info("notify: conversion summary sent", "recipient", email, "graphs", len(stems))
}

func displayName(account, email string) string {
	if strings.TrimSpace(account) != "" {
		return account
	}
	return email
}
