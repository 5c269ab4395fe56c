// Package relay is the HTTP client for the trusted email relay. The relay is
// the only component allowed to actually dispatch mail; every request carries
// an HMAC signature plus timestamp which the relay re-verifies before sending.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Vibez0-CONNECT/vibez/internal/errs"
	"github.com/Vibez0-CONNECT/vibez/internal/models"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/relaysign"
)

const defaultTimeout = 10 * time.Second

// Client sends signed dispatch requests to the relay endpoint.
type Client struct {
	endpoint string
	signer   *relaysign.Signer
	http     *http.Client
}

func New(endpoint string, signer *relaysign.Signer, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		signer:   signer,
		http:     &http.Client{Timeout: timeout},
	}
}

// SendCode asks the relay to deliver a one-time code. Any failure collapses to
// errs.ErrTransportFailure: the caller already committed the code record and
// must report "undelivered", never "not created".
func (c *Client) SendCode(ctx context.Context, email string, purpose models.VerificationPurpose, code string, ttl time.Duration) error {
	payload := map[string]string{
		"to":          email,
		"purpose":     string(purpose),
		"code":        code,
		"ttl_minutes": strconv.Itoa(int(ttl.Minutes())),
	}
	ts := time.Now().Unix()
	signature := c.signer.Sign(payload, ts)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode relay payload: %v", errs.ErrTransportFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrTransportFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Vibez-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Vibez-Signature", signature)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("%w: relay responded %d: %s", errs.ErrTransportFailure, resp.StatusCode, errResp.Message)
	}
	return nil
}
