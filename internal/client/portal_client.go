// Package client talks to the remote agent portal API.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/segyhp/agent-wallet/internal/domain"
	"github.com/segyhp/agent-wallet/pkg/utils"
)

const maxResponseBytes = 4 << 20

// PortalClient implements the agent, proposal and settlement repositories
// over the portal's HTTP API. It never retries.
type PortalClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewPortalClient creates a new portal client.
func NewPortalClient(baseURL, apiKey string, timeout time.Duration) *PortalClient {
	return &PortalClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// agentRecord mirrors MasterData[0] of the agent lookup.
type agentRecord struct {
	AgentID           string          `json:"Agent_Id"`
	AgentCode         string          `json:"Agent_Code"`
	WalletAmount      decimal.Decimal `json:"Wallet_Amount"`
	WalletUpdateDate  string          `json:"Wallet_Update_Date"`
	AdminApprovedDate string          `json:"AdminApproved_Date"`
	PaymentMode       string          `json:"paymentmode"`
}

// GetAgentByID retrieves the agent profile including wallet state.
func (c *PortalClient) GetAgentByID(ctx context.Context, agentID string) (*domain.Envelope[*domain.Agent], error) {
	var raw domain.Envelope[[]agentRecord]
	if err := c.do(ctx, http.MethodGet, "/agents/"+url.PathEscape(agentID), nil, &raw); err != nil {
		return nil, err
	}

	env := &domain.Envelope[*domain.Agent]{Status: raw.Status, Message: raw.Message}
	if len(raw.MasterData) > 0 {
		rec := raw.MasterData[0]
		if rec.AgentID == "" {
			rec.AgentID = agentID
		}
		env.MasterData = &domain.Agent{
			AgentID:           rec.AgentID,
			AgentCode:         rec.AgentCode,
			WalletAmount:      rec.WalletAmount,
			WalletUpdateDate:  utils.ParseFlexibleDate(rec.WalletUpdateDate),
			AdminApprovedDate: utils.ParseFlexibleDate(rec.AdminApprovedDate),
			PaymentMode:       rec.PaymentMode,
		}
	}
	return env, nil
}

// GetPremiumQuotation calculates the premium for the agent.
func (c *PortalClient) GetPremiumQuotation(ctx context.Context, agentID string) (*domain.Envelope[*domain.PremiumQuotation], error) {
	var env domain.Envelope[*domain.PremiumQuotation]
	if err := c.do(ctx, http.MethodGet, "/agents/"+url.PathEscape(agentID)+"/premium-quotation", nil, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// CheckDuplicateSubscriber asks the portal whether mobile or email is taken.
func (c *PortalClient) CheckDuplicateSubscriber(ctx context.Context, mobile, email string) (*domain.StatusReply, error) {
	payload := map[string]string{"mobile": mobile, "email": email}

	var env domain.StatusReply
	if err := c.do(ctx, http.MethodPost, "/subscribers/duplicate-check", payload, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// CreateProposal submits a validated draft.
func (c *PortalClient) CreateProposal(ctx context.Context, request *domain.CreateProposalRequest) (*domain.Envelope[*domain.CreatedProposal], error) {
	var env domain.Envelope[*domain.CreatedProposal]
	if err := c.do(ctx, http.MethodPost, "/proposals", request, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// GenerateInvoice renders the invoice PDF for a proposal.
func (c *PortalClient) GenerateInvoice(ctx context.Context, proposalExternalID string) (*domain.Envelope[*domain.Invoice], error) {
	var env domain.Envelope[*domain.Invoice]
	if err := c.do(ctx, http.MethodPost, "/proposals/"+url.PathEscape(proposalExternalID)+"/invoice", nil, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// ListProposalsByStatus lists proposals. The portal returns either
// MasterData.proposals[] or a bare MasterData[]; both are accepted.
func (c *PortalClient) ListProposalsByStatus(ctx context.Context, agentID string, status domain.PaymentStatus) (*domain.Envelope[[]*domain.Proposal], error) {
	path := "/agents/" + url.PathEscape(agentID) + "/proposals?status=" + url.QueryEscape(string(status))

	var raw domain.Envelope[json.RawMessage]
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	env := &domain.Envelope[[]*domain.Proposal]{Status: raw.Status, Message: raw.Message}
	proposals, err := decodeProposalList(raw.MasterData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode proposal list: %w", err)
	}
	env.MasterData = proposals
	return env, nil
}

func decodeProposalList(data json.RawMessage) ([]*domain.Proposal, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var list []*domain.Proposal
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var wrapped struct {
		Proposals []*domain.Proposal `json:"proposals"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Proposals, nil
}

// SettlePayment pays one proposal from the wallet.
func (c *PortalClient) SettlePayment(ctx context.Context, request *domain.SettlementRequest) (*domain.Envelope[*domain.SettlementResponse], error) {
	var env domain.Envelope[*domain.SettlementResponse]
	if err := c.do(ctx, http.MethodPost, "/payments/wallet", request, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// ApplyBatchSettlement submits many pending proposals at once.
func (c *PortalClient) ApplyBatchSettlement(ctx context.Context, request *domain.BatchSettlementRequest) (*domain.StatusReply, error) {
	var env domain.StatusReply
	if err := c.do(ctx, http.MethodPost, "/payments/batch", request, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// do performs one request and decodes the envelope into out. Transport
// failures, and error statuses without a decodable envelope, are returned as
// errors; an envelope with a non-Success status is not an error here.
func (c *PortalClient) do(ctx context.Context, method, path string, payload any, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("portal base URL is not configured")
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request to portal: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read portal response: %w", err)
	}

	var probe struct {
		Status string `json:"Status"`
	}
	decodeErr := json.Unmarshal(raw, &probe)
	if resp.StatusCode >= 400 && (decodeErr != nil || probe.Status == "") {
		return fmt.Errorf("portal returned error status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode portal response: %w", decodeErr)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode portal response: %w", err)
	}
	return nil
}
