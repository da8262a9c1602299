package entitlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quickai/go-quickai-backend/internal/clients"
)

// Provider is an HTTP client for the identity provider's management API. The
// provider stores the plan and free-usage counter as private user metadata:
//
//	GET   {base}/users/{id}/metadata          -> {"plan": "...", "free_usage": N}
//	PATCH {base}/users/{id}/metadata          <- {"free_usage": N+1}
//
// The increment is a read followed by a write; the provider offers no atomic
// counter, so concurrent increments can race. That matches the upstream
// contract and is acceptable because the counter is best-effort.
type Provider struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewProvider returns a Provider for the management API at baseURL,
// authenticating with apiKey. When httpc is nil a client with conservative
// transport timeouts is used.
func NewProvider(baseURL, apiKey string, httpc *http.Client) *Provider {
	if httpc == nil {
		httpc = clients.NewHTTPClient(10 * time.Second)
	}
	return &Provider{baseURL: baseURL, apiKey: apiKey, httpc: httpc}
}

// Get fetches the user's current entitlement. An absent plan defaults to the
// free tier, mirroring how the provider treats users without metadata.
func (p *Provider) Get(ctx context.Context, userID string) (Entitlement, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.metadataURL(userID), nil)
	if err != nil {
		return Entitlement{}, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpc.Do(req)
	if err != nil {
		return Entitlement{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Entitlement{}, ErrUserNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return Entitlement{}, fmt.Errorf("entitlement provider: %s: %s", resp.Status, bytes.TrimSpace(body))
	}

	var ent Entitlement
	if err := json.NewDecoder(resp.Body).Decode(&ent); err != nil {
		return Entitlement{}, fmt.Errorf("entitlement provider: decode: %w", err)
	}
	if ent.Plan == "" {
		ent.Plan = PlanFree
	}
	return ent, nil
}

// IncrementFreeUsage reads the current counter and writes it back plus one.
func (p *Provider) IncrementFreeUsage(ctx context.Context, userID string) error {
	ent, err := p.Get(ctx, userID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]int{"free_usage": ent.FreeUsage + 1})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, p.metadataURL(userID), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("entitlement provider: %s: %s", resp.Status, bytes.TrimSpace(body))
	}
	return nil
}

func (p *Provider) metadataURL(userID string) string {
	return fmt.Sprintf("%s/users/%s/metadata", p.baseURL, userID)
}
