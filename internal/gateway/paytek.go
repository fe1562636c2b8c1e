package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aulaviva/checkout/internal/domain/checkout"
	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
)

// PaytekGateway charges mobile-money and bank-transfer methods through the
// Paytek HTTP API. Charges are reference-based and confirm asynchronously:
// a charge answers pending and settlement lands later (mobile confirmation on
// the customer's phone, bank settlement in 1-2 business days).
type PaytekGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewPaytekGateway creates a paytek gateway client.
func NewPaytekGateway(baseURL, apiKey string) *PaytekGateway {
	return &PaytekGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (g *PaytekGateway) Name() checkout.GatewayName { return checkout.GatewayPaytek }

// Tokenize is not part of the paytek flow; methods are referenced directly.
func (g *PaytekGateway) Tokenize(ctx context.Context, card CardDetails) (string, error) {
	return "", domainErrors.NewValidationError("method", "paytek does not tokenize cards")
}

type paytekChargeRequest struct {
	MerchantReference string `json:"merchant_reference"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Channel           string `json:"channel"`
	Provider          string `json:"provider,omitempty"`
	Msisdn            string `json:"msisdn,omitempty"`
	BankCode          string `json:"bank_code,omitempty"`
	AccountNumber     string `json:"account_number,omitempty"`
}

type paytekChargeResponse struct {
	Reference         string `json:"reference"`
	MerchantReference string `json:"merchant_reference"`
	Status            string `json:"status"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	FailureReason     string `json:"failure_reason"`
}

// Charge submits a charge. POST /v1/charges
func (g *PaytekGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	body := paytekChargeRequest{
		MerchantReference: req.SessionID,
		Amount:            req.AmountCents,
		Currency:          req.Currency,
		Channel:           string(req.Method.Kind),
		Provider:          req.Method.Provider,
		Msisdn:            req.Method.PhoneNumber,
		BankCode:          req.Method.BankCode,
		AccountNumber:     req.Method.AccountNumber,
	}

	var resp paytekChargeResponse
	if err := g.do(ctx, http.MethodPost, "/v1/charges", &body, &resp); err != nil {
		return nil, err
	}

	return &ChargeResult{
		GatewayReference: resp.Reference,
		Status:           mapPaytekStatus(resp.Status),
		DeclineReason:    resp.FailureReason,
	}, nil
}

// Verify reads a prior charge. GET /v1/charges/{reference}
func (g *PaytekGateway) Verify(ctx context.Context, gatewayReference string) (*VerifyResult, error) {
	var resp paytekChargeResponse
	if err := g.do(ctx, http.MethodGet, "/v1/charges/"+gatewayReference, nil, &resp); err != nil {
		return nil, err
	}

	return &VerifyResult{
		GatewayReference: resp.Reference,
		Status:           mapPaytekStatus(resp.Status),
		AmountCents:      resp.Amount,
		Currency:         resp.Currency,
		DeclineReason:    resp.FailureReason,
		SessionID:        resp.MerchantReference,
	}, nil
}

func (g *PaytekGateway) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal paytek request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build paytek request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domainErrors.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: paytek returned status %d", domainErrors.ErrGatewayAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest:
		raw, _ := io.ReadAll(resp.Body)
		return domainErrors.NewDomainError("gateway_rejected", string(raw), domainErrors.ErrGatewayRejected)
	case resp.StatusCode == http.StatusNotFound:
		return domainErrors.ErrTransactionNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: paytek returned status %d", domainErrors.ErrGatewayUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode paytek response: %w", err)
	}
	return nil
}

func mapPaytekStatus(s string) Status {
	switch s {
	case "settled", "succeeded":
		return StatusSucceeded
	case "rejected", "failed", "cancelled":
		return StatusFailed
	default:
		// initiated, awaiting_confirmation, settling
		return StatusPending
	}
}
