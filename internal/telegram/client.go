// Package telegram posts game share summaries to a Telegram chat.
//
// Messages use MarkdownV2, so every user-visible text fragment goes through
// escapeMarkdownV2. Delivery is retried with a linear delay.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rewired-gh/predictle/internal/models"
)

// sender is the part of tgbotapi.BotAPI the client uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram share delivery
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// Share is one finished (or in-progress) session to post.
type Share struct {
	Mode    models.Mode
	Summary string // output of scoring.ShareSummary
	Status  string // optional trailing line, e.g. "Streak 3"
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendShare posts a share summary to the configured chat.
func (c *Client) SendShare(ctx context.Context, share Share) error {
	msg := tgbotapi.NewMessage(c.chatID, formatShare(share))
	msg.ParseMode = "MarkdownV2"

	// Send with retry
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatShare renders a share as a MarkdownV2 message. The first summary
// line is the headline; the glyph grid follows as-is.
func formatShare(share Share) string {
	headline, grid, _ := strings.Cut(share.Summary, "\n")

	var b strings.Builder
	fmt.Fprintf(&b, "*%s*", escapeMarkdownV2(headline))
	if share.Mode != "" {
		fmt.Fprintf(&b, " _%s_", escapeMarkdownV2(string(share.Mode)))
	}
	b.WriteString("\n")
	if grid != "" {
		b.WriteString(escapeMarkdownV2(grid))
		b.WriteString("\n")
	}
	if share.Status != "" {
		b.WriteString("\n")
		b.WriteString(escapeMarkdownV2(share.Status))
		b.WriteString("\n")
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . !
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
