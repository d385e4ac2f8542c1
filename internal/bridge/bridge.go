// Package bridge talks to the host runtime's capability endpoint. The
// host may or may not be present, and when present may expose any of
// several notification send variants; everything here is probed
// explicitly and degrades without failing the process.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"token-tracker/internal/domain"
)

// SendVariant identifies one of the notification method shapes a host
// can expose, in fixed priority order.
type SendVariant string

const (
	VariantNotify            SendVariant = "notify"
	VariantNotificationsSend SendVariant = "notifications.send"
	VariantSendNotification  SendVariant = "sendNotification"
)

// variantPriority is the order in which advertised variants are chosen.
var variantPriority = []SendVariant{VariantNotify, VariantNotificationsSend, VariantSendNotification}

var variantPaths = map[SendVariant]string{
	VariantNotify:            "/actions/notify",
	VariantNotificationsSend: "/notifications/send",
	VariantSendNotification:  "/actions/send-notification",
}

// Payload is the notification body handed to a delivery channel.
type Payload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	TargetURL string `json:"targetUrl,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// capabilities mirrors the host's capability manifest. Each nested object
// is optional; absent objects simply disable the corresponding calls.
type capabilities struct {
	Actions struct {
		Ready            bool `json:"ready"`
		Notify           bool `json:"notify"`
		SendNotification bool `json:"sendNotification"`
	} `json:"actions"`
	Notifications struct {
		Send bool `json:"send"`
	} `json:"notifications"`
	Auth struct {
		GetUser            bool `json:"getUser"`
		RequestPermissions bool `json:"requestPermissions"`
	} `json:"auth"`
}

// Handle is a probed host connection. A nil Handle means no host runtime
// is reachable and callers should fall back to local behavior.
type Handle struct {
	baseURL    string
	httpClient *http.Client
	sendVia    SendVariant
	canSend    bool
	canUser    bool
	canPerms   bool
	logger     *zap.Logger
}

// Probe checks whether a host runtime is reachable at baseURL and which
// capabilities it advertises. An empty baseURL or any transport failure
// returns a nil handle and an error; neither is fatal to the caller.
func Probe(ctx context.Context, baseURL string, logger *zap.Logger) (*Handle, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("no host bridge configured")
	}

	h := &Handle{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger.Named("bridge"),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/capabilities", nil)
	if err != nil {
		return nil, fmt.Errorf("create probe request: %w", err)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe host bridge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("host bridge probe status %d", resp.StatusCode)
	}

	var caps capabilities
	if err := json.NewDecoder(resp.Body).Decode(&caps); err != nil {
		return nil, fmt.Errorf("decode capabilities: %w", err)
	}

	advertised := map[SendVariant]bool{
		VariantNotify:            caps.Actions.Notify,
		VariantNotificationsSend: caps.Notifications.Send,
		VariantSendNotification:  caps.Actions.SendNotification,
	}
	for _, v := range variantPriority {
		if advertised[v] {
			h.sendVia = v
			h.canSend = true
			break
		}
	}
	h.canUser = caps.Auth.GetUser
	h.canPerms = caps.Auth.RequestPermissions

	h.logger.Info("Host bridge probed",
		zap.String("url", h.baseURL),
		zap.Bool("can_send", h.canSend),
		zap.String("send_variant", string(h.sendVia)),
		zap.Bool("can_user", h.canUser))
	return h, nil
}

// SendVariant returns the notification method shape selected at probe
// time, or false when the host advertises none.
func (h *Handle) SendVariant() (SendVariant, bool) {
	return h.sendVia, h.canSend
}

// Ready signals the readiness handshake to the host. Failures are
// returned for logging only; callers must treat them as non-fatal.
func (h *Handle) Ready(ctx context.Context) error {
	return h.post(ctx, "/actions/ready", nil, nil)
}

// Send delivers a notification through the variant chosen at probe time.
func (h *Handle) Send(ctx context.Context, p Payload) error {
	if !h.canSend {
		return fmt.Errorf("host exposes no notification method")
	}
	return h.post(ctx, variantPaths[h.sendVia], p, nil)
}

// hostUser tolerates the different field names host runtimes use for the
// same profile attributes.
type hostUser struct {
	FID         int64  `json:"fid"`
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Name        string `json:"name"`
	PfpURL      string `json:"pfpUrl"`
	Avatar      string `json:"avatar"`
	Pfp         string `json:"pfp"`
}

// User fetches the host user profile, normalizing the loose field shapes
// different runtimes use. A profile without an id is treated as absent.
func (h *Handle) User(ctx context.Context) (*domain.User, error) {
	if !h.canUser {
		return nil, fmt.Errorf("host exposes no user lookup")
	}

	var raw hostUser
	if err := h.get(ctx, "/auth/user", &raw); err != nil {
		return nil, err
	}

	u := &domain.User{
		FID:         raw.FID,
		Username:    raw.Username,
		DisplayName: raw.DisplayName,
		PfpURL:      raw.PfpURL,
	}
	if u.FID == 0 {
		u.FID = raw.ID
	}
	if u.Username == "" {
		u.Username = raw.Handle
	}
	if u.DisplayName == "" {
		u.DisplayName = raw.Name
	}
	if u.PfpURL == "" {
		u.PfpURL = raw.Avatar
	}
	if u.PfpURL == "" {
		u.PfpURL = raw.Pfp
	}
	if u.FID == 0 {
		return nil, fmt.Errorf("host returned user without id")
	}
	return u, nil
}

// RequestPermissions asks the host to grant notification permissions.
func (h *Handle) RequestPermissions(ctx context.Context) error {
	if !h.canPerms {
		return fmt.Errorf("host exposes no permission request")
	}
	return h.post(ctx, "/auth/permissions", nil, nil)
}

// MockUser is the local development fallback profile used when no host
// runtime is present.
func MockUser() *domain.User {
	return &domain.User{
		FID:         1,
		Username:    "dev",
		DisplayName: "Local Developer",
	}
}

func (h *Handle) post(ctx context.Context, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.do(req, out)
}

func (h *Handle) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return h.do(req, out)
}

func (h *Handle) do(req *http.Request, out interface{}) error {
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("host bridge status %d for %s", resp.StatusCode, req.URL.Path)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
