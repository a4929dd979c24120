package bank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/b1ank002/ZappkaApp/internal/logger"
	"github.com/b1ank002/ZappkaApp/internal/payment"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2/clientcredentials"
)

const transfersScope = "transfers:read"

// Config locates the bank's transfer API and its authorization server.
// IssuerURL is preferred; TokenURL is used when the bank does not publish
// OpenID discovery metadata.
type Config struct {
	APIURL       string
	IssuerURL    string
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// Verifier checks incoming transfers on the receiver account through the
// bank's API. It returns facts about transfers only; session state is not
// touched here.
type Verifier struct {
	apiURL string
	client *http.Client
}

var _ payment.Verifier = (*Verifier)(nil)

func New(ctx context.Context, cfg Config) (*Verifier, error) {
	if cfg.APIURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("bank verifier config missing required fields")
	}

	tokenURL := cfg.TokenURL
	if cfg.IssuerURL != "" {
		provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
		if err != nil {
			return nil, fmt.Errorf("failed to discover bank authorization server: %w", err)
		}
		tokenURL = provider.Endpoint().TokenURL
	}
	if tokenURL == "" {
		return nil, errors.New("bank verifier has no token endpoint")
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{transfersScope},
	}

	client := cc.Client(ctx)
	client.Timeout = 10 * time.Second

	return &Verifier{
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		client: client,
	}, nil
}

type transfer struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

type transfersResponse struct {
	Transfers []transfer `json:"transfers"`
}

// Verify approves the claim once booked transfers carrying code in their
// reference add up to at least amount.
func (v *Verifier) Verify(
	ctx context.Context,
	userAddress string,
	code string,
	amount int64,
) (payment.Decision, error) {

	endpoint := v.apiURL + "/v1/transfers?" + url.Values{"reference": {code}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return payment.Decision{}, fmt.Errorf("bank: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return payment.Decision{}, fmt.Errorf("bank: list transfers: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return payment.Decision{Reason: "no transfer found for this code"}, nil
	case resp.StatusCode != http.StatusOK:
		return payment.Decision{}, fmt.Errorf("bank: list transfers: unexpected status %d", resp.StatusCode)
	}

	var body transfersResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return payment.Decision{}, fmt.Errorf("bank: decode transfers: %w", err)
	}

	var booked int64
	for _, t := range body.Transfers {
		if t.Reference != code || !strings.EqualFold(t.Status, "booked") {
			continue
		}
		booked += t.Amount
	}

	logger.Info("bank transfers checked", map[string]any{
		"user_address": userAddress,
		"code":         code,
		"claimed":      amount,
		"booked":       booked,
	})

	if booked == 0 {
		return payment.Decision{Reason: "no booked transfer for this code yet"}, nil
	}
	if booked < amount {
		return payment.Decision{
			Reason: fmt.Sprintf("booked amount %d is below claimed amount %d", booked, amount),
		}, nil
	}

	return payment.Decision{Approved: true}, nil
}
