package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/segyhp/agent-wallet/internal/domain"
	"github.com/segyhp/agent-wallet/internal/service"
	"github.com/segyhp/agent-wallet/pkg/response"
)

type WalletHandler struct {
	registry  *service.WorkflowRegistry
	batch     *service.BatchSettlement
	validator *validator.Validate
	logger    *slog.Logger
}

func NewWalletHandler(registry *service.WorkflowRegistry, batch *service.BatchSettlement, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{
		registry:  registry,
		batch:     batch,
		validator: validator.New(),
		logger:    logger,
	}
}

type EligibilityResponse struct {
	Agent       *domain.Agent            `json:"agent"`
	Eligibility domain.EligibilityResult `json:"eligibility"`
}

type ProposalListResponse struct {
	Status              domain.PaymentStatus     `json:"status"`
	Proposals           []*domain.Proposal       `json:"proposals"`
	Eligibility         domain.EligibilityResult `json:"eligibility"`
	Selected            []string                 `json:"selected"`
	TotalSelectedAmount string                   `json:"total_selected_amount"`
	Message             string                   `json:"message,omitempty"`
}

type SettleRequest struct {
	ProposalIDs []string `json:"proposal_ids" validate:"dive,required"`
}

// Eligibility refreshes the agent and reports the wallet eligibility window
func (h *WalletHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agentId"]
	ledger := h.registry.Ledger(agentID)

	agent, err := ledger.RefreshAgent(r.Context(), agentID)
	if err != nil {
		h.logger.Warn("failed to refresh agent", slog.String("agent_id", agentID), slog.Any("error", err))
		response.FromError(w, err)
		return
	}

	response.Success(w, EligibilityResponse{
		Agent:       agent,
		Eligibility: ledger.Eligibility(),
	})
}

// ListProposals lists one status tab of the agent's proposals
func (h *WalletHandler) ListProposals(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agentId"]

	status := domain.PaymentStatusPending
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		parsed, ok := domain.ParsePaymentStatus(raw)
		if !ok {
			response.BadRequest(w, "status must be one of Pending, InProcess, Approved", nil)
			return
		}
		status = parsed
	}

	ledger := h.registry.Ledger(agentID)
	proposals, err := ledger.Load(r.Context(), status)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, h.listResponse(ledger, status, proposals))
}

// ToggleSelection adds or removes a pending proposal from the batch selection
func (h *WalletHandler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ledger := h.registry.Ledger(vars["agentId"])

	if !ledger.Toggle(vars["proposalId"]) {
		response.Error(w, http.StatusConflict, "Proposal cannot be selected", nil)
		return
	}

	selection := ledger.Selection()
	response.Success(w, selection)
}

// Settle pays the given proposals, or the current selection when none are given
func (h *WalletHandler) Settle(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agentId"]

	var req SettleRequest
	if err := decodeOptional(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	ledger := h.registry.Ledger(agentID)

	var (
		result *domain.SettlementResult
		err    error
	)
	if len(req.ProposalIDs) == 0 {
		result, err = h.batch.ApplySelected(r.Context(), agentID)
	} else {
		if _, loadErr := ledger.Load(r.Context(), domain.PaymentStatusPending); loadErr != nil {
			response.FromError(w, loadErr)
			return
		}
		selection, missing := ledger.SelectionOf(req.ProposalIDs)
		if len(missing) > 0 {
			response.BadRequest(w, "Unknown pending proposals: "+strings.Join(missing, ", "), nil)
			return
		}
		result, err = h.batch.ApplySettlement(r.Context(), agentID, selection)
	}
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *WalletHandler) listResponse(ledger *service.WalletLedger, status domain.PaymentStatus, proposals []*domain.Proposal) ProposalListResponse {
	selection := ledger.Selection()
	return ProposalListResponse{
		Status:              status,
		Proposals:           proposals,
		Eligibility:         ledger.Eligibility(),
		Selected:            selection.ProposalIDs(),
		TotalSelectedAmount: selection.TotalSelectedAmount.StringFixed(2),
		Message:             ledger.Message(),
	}
}
