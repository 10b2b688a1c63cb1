package callprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-temporal-procurement/procurement/types"
)

const maxErrorBody = 512

// HTTPConfig configures HTTPProvider
type HTTPConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	FromNumber string
	Timeout    time.Duration
	// AllowedContacts, when set, is the only set of numbers that may be dialled
	AllowedContacts []string
}

// HTTPProvider talks to a REST telephony API that creates calls with
// POST {base}/calls and ends them with POST {base}/calls/{sid}/hangup.
type HTTPProvider struct {
	cfg     HTTPConfig
	client  *http.Client
	allowed map[string]bool
}

// NewHTTPProvider creates a provider with its own HTTP client
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	p := &HTTPProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	if len(cfg.AllowedContacts) > 0 {
		p.allowed = make(map[string]bool, len(cfg.AllowedContacts))
		for _, c := range cfg.AllowedContacts {
			p.allowed[c] = true
		}
	}
	return p
}

type createCallRequest struct {
	From        string  `json:"from"`
	To          string  `json:"to"`
	CallbackURL string  `json:"callback_url"`
	Payload     Payload `json:"payload"`
}

type createCallResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// Open creates a call. Unusable contacts fail with *types.InvalidContactError,
// everything else with *types.DispatchError.
func (p *HTTPProvider) Open(ctx context.Context, contact string, payload Payload) (string, error) {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return "", &types.InvalidContactError{VendorID: payload.VendorID, Msg: "empty contact"}
	}
	if p.allowed != nil && !p.allowed[contact] {
		return "", &types.InvalidContactError{VendorID: payload.VendorID, Msg: "contact not in allow list"}
	}

	body, err := json.Marshal(createCallRequest{
		From:        p.cfg.FromNumber,
		To:          contact,
		CallbackURL: payload.CallbackURL,
		Payload:     payload,
	})
	if err != nil {
		return "", fmt.Errorf("encode call request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("calls"), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build call request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(p.cfg.AccountSID, p.cfg.AuthToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &types.DispatchError{VendorID: payload.VendorID, Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &types.DispatchError{VendorID: payload.VendorID, StatusCode: resp.StatusCode, Msg: strings.TrimSpace(string(msg))}
	}

	var created createCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", &types.DispatchError{VendorID: payload.VendorID, StatusCode: resp.StatusCode, Msg: "undecodable response: " + err.Error()}
	}
	if created.SID == "" {
		return "", &types.DispatchError{VendorID: payload.VendorID, StatusCode: resp.StatusCode, Msg: "response carried no session id"}
	}
	return created.SID, nil
}

// HangUp asks the provider to end a call. A call the provider no longer
// knows about counts as ended.
func (p *HTTPProvider) HangUp(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("calls", sessionID, "hangup"), nil)
	if err != nil {
		return fmt.Errorf("build hangup request: %w", err)
	}
	req.SetBasicAuth(p.cfg.AccountSID, p.cfg.AuthToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("hangup %s: %w", sessionID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode/100 == 2 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("hangup %s: status %d: %s", sessionID, resp.StatusCode, strings.TrimSpace(string(msg)))
}

func (p *HTTPProvider) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, part := range parts {
		escaped[i] = url.PathEscape(part)
	}
	return strings.TrimRight(p.cfg.BaseURL, "/") + "/" + strings.Join(escaped, "/")
}
