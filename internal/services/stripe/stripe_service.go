package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Service talks to the Stripe REST API directly. Only the two calls this
// backend needs are implemented: payment intent creation and webhook
// signature verification.
type Service struct {
	Client        *http.Client
	SecretKey     string
	WebhookSecret string
	BaseURL       string

	// Tolerance for webhook timestamp skew. Stripe recommends 5 minutes.
	Tolerance time.Duration
}

func New(secretKey, webhookSecret string) *Service {
	return &Service{
		Client:        &http.Client{Timeout: 15 * time.Second},
		SecretKey:     secretKey,
		WebhookSecret: webhookSecret,
		BaseURL:       "https://api.stripe.com",
		Tolerance:     5 * time.Minute,
	}
}

type PaymentIntent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Status       string            `json:"status"`
	Metadata     map[string]string `json:"metadata"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreatePaymentIntent creates an automatic-payment-methods intent. Amount
// is in the currency's smallest unit.
func (s *Service) CreatePaymentIntent(amount int64, currency string, metadata map[string]string) (*PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}

	req, err := http.NewRequest("POST", s.BaseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("stripe: %s", apiErr.Error.Message)
		}
		return nil, fmt.Errorf("stripe: unexpected status %d", resp.StatusCode)
	}

	var intent PaymentIntent
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, fmt.Errorf("stripe: parse response: %w", err)
	}
	return &intent, nil
}

// Event is the subset of a webhook event this backend consumes.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object PaymentIntent `json:"object"`
	} `json:"data"`
}

var ErrInvalidSignature = errors.New("stripe: invalid webhook signature")

// ConstructEvent verifies the Stripe-Signature header against the raw
// payload and returns the parsed event. The header carries a timestamp and
// one or more v1 signatures: HMAC-SHA256 of "<timestamp>.<payload>" keyed
// by the endpoint secret.
func (s *Service) ConstructEvent(payload []byte, sigHeader string) (*Event, error) {
	if err := s.verifySignature(payload, sigHeader, time.Now()); err != nil {
		return nil, err
	}
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("stripe: parse event: %w", err)
	}
	return &ev, nil
}

func (s *Service) verifySignature(payload []byte, sigHeader string, now time.Time) error {
	var ts int64
	var sigs []string
	for _, part := range strings.Split(sigHeader, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			ts = parsed
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return ErrInvalidSignature
	}

	if s.Tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > s.Tolerance || age < -s.Tolerance {
			return ErrInvalidSignature
		}
	}

	mac := hmac.New(sha256.New, []byte(s.WebhookSecret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range sigs {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// SignPayload produces a Stripe-Signature header value for payload at the
// given time. Used by tests and local tooling to simulate webhooks.
func (s *Service) SignPayload(payload []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(s.WebhookSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}
