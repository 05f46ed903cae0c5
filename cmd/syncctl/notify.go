package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ugfund/ugfsync/internal/airtable"
	"github.com/ugfund/ugfsync/internal/mediasync"
)

var (
	notifyURL      string
	notifyCategory string
	notifyInterval time.Duration
	notifyCount    int
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send a signed Airtable notification to a running server",
	Long: `Posts the ping Airtable sends when a watched table changes, signed with
the category's MAC secret. Useful for exercising a local server without
editing the base.`,
	Args: cobra.NoArgs,
	RunE: runNotify,
}

func init() {
	notifyCmd.Flags().StringVar(&notifyURL, "url", "http://localhost:8080", "server base URL")
	notifyCmd.Flags().StringVarP(&notifyCategory, "category", "c", "team", "category to notify (team or portfolio)")
	notifyCmd.Flags().DurationVar(&notifyInterval, "interval", 0, "repeat every interval; 0 sends once")
	notifyCmd.Flags().IntVar(&notifyCount, "count", 0, "stop after this many notifications when repeating; 0 runs until interrupted")
	rootCmd.AddCommand(notifyCmd)
}

func runNotify(cmd *cobra.Command, _ []string) error {
	cfg := application.Config
	path := "/api/airtable-webhook"
	table := cfg.Airtable.Team
	switch notifyCategory {
	case mediasync.CategoryTeam:
	case mediasync.CategoryPortfolio:
		path = "/api/airtable-webhook-portcos"
		table = cfg.Airtable.Deals
	default:
		return fmt.Errorf("unknown category %q", notifyCategory)
	}

	target := strings.TrimRight(notifyURL, "/") + path
	client := &http.Client{Timeout: 2 * time.Minute}
	send := func() error {
		body, err := json.Marshal(airtable.Notification{
			Base:      airtable.IDRef{ID: cfg.Airtable.BaseID},
			Webhook:   airtable.IDRef{ID: table.WebhookID},
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return fmt.Errorf("failed to encode notification: %w", err)
		}
		status, err := sendNotification(cmd.Context(), client, target, body, table.WebhookSecret)
		if err != nil {
			return err
		}
		cmd.Printf("%s: %s\n", target, status)
		return nil
	}

	if notifyInterval <= 0 {
		return send()
	}

	ticker := time.NewTicker(notifyInterval)
	defer ticker.Stop()
	for sent := 0; notifyCount == 0 || sent < notifyCount; sent++ {
		if err := send(); err != nil {
			cmd.PrintErrln("notify error:", err)
		}
		select {
		case <-cmd.Context().Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// sendNotification posts body to target. A non-empty secretBase64 adds the
// X-Airtable-Content-MAC header.
func sendNotification(ctx context.Context, client *http.Client, target string, body []byte, secretBase64 string) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if secretBase64 != "" {
		signature, err := sign(body, secretBase64)
		if err != nil {
			return "", err
		}
		request.Header.Set("X-Airtable-Content-MAC", signature)
	}

	resp, err := client.Do(request)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("notification rejected: %s %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	return resp.Status, nil
}

func sign(body []byte, secretBase64 string) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(strings.TrimSpace(secretBase64))
	if err != nil {
		return "", fmt.Errorf("webhook secret is not base64: %w", err)
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "hmac-sha256=" + hex.EncodeToString(mac.Sum(nil)), nil
}
