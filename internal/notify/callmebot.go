package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// CallMeBotURL is the WhatsApp endpoint of the CallMeBot service.
const CallMeBotURL = "https://api.callmebot.com/whatsapp.php"

// DeliveryError is returned when the gateway answers with a non-2xx status.
type DeliveryError struct {
	Recipient  string
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: HTTP %d: %s", e.Recipient, e.StatusCode, e.Body)
}

// CallMeBot sends WhatsApp messages through api.callmebot.com.
type CallMeBot struct {
	BaseURL string
	Client  *http.Client
}

// NewCallMeBot returns a gateway for the public CallMeBot endpoint.
func NewCallMeBot() *CallMeBot {
	return &CallMeBot{
		BaseURL: CallMeBotURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts text to the recipient's phone number using its API key.
func (c *CallMeBot) Send(ctx context.Context, recipient, credential, text string) error {
	q := url.Values{}
	q.Set("phone", recipient)
	q.Set("apikey", credential)
	q.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post to %s: %w", recipient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &DeliveryError{Recipient: recipient, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}
