package gmailclient

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/api/gmail/v1"
)

// SendEmail sends a plain-text email, waiting for the rate limiter first
func (c *Client) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("email rate limit wait: %w", err)
	}

	message := buildMessage(to, subject, body)

	_, err := c.service.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(message)),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func buildMessage(to, subject, body string) string {
	return fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body)
}
