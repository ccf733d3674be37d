package telephony

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// TwilioConfig holds the provider credentials and the public webhook base.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	// PublicURL is the externally reachable base for webhook callbacks,
	// e.g. https://calls.example.com.
	PublicURL string
}

// Twilio places outbound calls through the Twilio Voice REST API. Safe for
// concurrent use.
type Twilio struct {
	cfg     TwilioConfig
	baseURL string
	client  *http.Client
}

var _ Dialer = (*Twilio)(nil)

// NewTwilio validates the config and returns the adapter.
func NewTwilio(cfg TwilioConfig) (*Twilio, error) {
	if cfg.AccountSID == "" {
		return nil, fmt.Errorf("twilio: account SID is required")
	}
	if cfg.AuthToken == "" {
		return nil, fmt.Errorf("twilio: auth token is required")
	}
	if cfg.PublicURL == "" {
		return nil, fmt.Errorf("twilio: public URL is required")
	}
	return &Twilio{
		cfg:     cfg,
		baseURL: fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s", cfg.AccountSID),
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Dial places the call and points its voice and status callbacks at the
// gateway's webhook endpoints, carrying our callId as a query parameter.
func (t *Twilio) Dial(ctx context.Context, req DialRequest) (*DialResult, error) {
	if req.CallID == "" {
		return nil, fmt.Errorf("twilio: callId is required")
	}
	from := req.From
	if from == "" {
		from = t.cfg.From
	}

	voiceURL, err := t.callbackURL("/webhooks/voice", req.CallID)
	if err != nil {
		return nil, err
	}
	statusURL, err := t.callbackURL("/webhooks/status", req.CallID)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"To":                  {req.To},
		"From":                {from},
		"Url":                 {voiceURL},
		"StatusCallback":      {statusURL},
		"StatusCallbackEvent": {"initiated", "ringing", "answered", "completed"},
		"Timeout":             {"30"},
	}

	body, err := t.apiRequest(ctx, "/Calls.json", params)
	if err != nil {
		return nil, fmt.Errorf("twilio: failed to initiate call: %w", err)
	}

	var result struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("twilio: failed to parse response: %w", err)
	}
	return &DialResult{ProviderCallID: result.SID, Status: result.Status}, nil
}

func (t *Twilio) callbackURL(path, callID string) (string, error) {
	u, err := url.Parse(t.cfg.PublicURL)
	if err != nil {
		return "", fmt.Errorf("twilio: invalid public URL: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	q := u.Query()
	q.Set("callId", callID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (t *Twilio) apiRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path,
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// ValidateSignature checks the X-Twilio-Signature header: HMAC-SHA1 over
// the full request URL concatenated with the sorted form parameters.
func ValidateSignature(authToken, signature, fullURL string, form url.Values) bool {
	if signature == "" {
		return false
	}

	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sigString := fullURL
	for _, k := range keys {
		for _, v := range form[k] {
			sigString += k + v
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(sigString))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
