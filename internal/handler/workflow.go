package handler

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/segyhp/agent-wallet/internal/domain"
	"github.com/segyhp/agent-wallet/internal/service"
	"github.com/segyhp/agent-wallet/pkg/response"
)

type WorkflowHandler struct {
	registry  *service.WorkflowRegistry
	validator *validator.Validate
	logger    *slog.Logger
}

func NewWorkflowHandler(registry *service.WorkflowRegistry, logger *slog.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		registry:  registry,
		validator: validator.New(),
		logger:    logger,
	}
}

type StartWorkflowRequest struct {
	// Agent is the profile handed over by the navigating view, if any.
	Agent *domain.Agent `json:"agent"`
}

type StartWorkflowResponse struct {
	WorkflowID uuid.UUID                `json:"workflow_id"`
	Workflow   service.WorkflowSnapshot `json:"workflow"`
}

type SelectModeRequest struct {
	Mode string `json:"mode" validate:"required"`
}

// Start opens a proposal workflow for the agent and prices its plan
func (h *WorkflowHandler) Start(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agentId"]

	var req StartWorkflowRequest
	if err := decodeOptional(r, &req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	id, workflow, err := h.registry.Start(r.Context(), agentID, req.Agent)
	if err != nil {
		response.FromError(w, err)
		return
	}

	if _, err := workflow.LoadQuotation(r.Context()); err != nil {
		h.logger.Warn("premium quotation failed", slog.String("agent_id", agentID), slog.Any("error", err))
		_ = h.registry.Discard(id)
		response.FromError(w, err)
		return
	}

	response.Created(w, StartWorkflowResponse{
		WorkflowID: id,
		Workflow:   workflow.Snapshot(),
	})
}

// Get returns the current state of a workflow
func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	workflow, ok := h.lookup(w, r)
	if !ok {
		return
	}

	response.Success(w, workflow.Snapshot())
}

// SelectMode switches the payment mode before the proposal exists
func (h *WorkflowHandler) SelectMode(w http.ResponseWriter, r *http.Request) {
	workflow, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req SelectModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	mode, err := service.ParseSelectableMode(req.Mode)
	if err != nil {
		response.FromError(w, err)
		return
	}

	amounts, err := workflow.SelectMode(mode)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, amounts)
}

// SubmitProposal validates the subscriber and creates the proposal
func (h *WorkflowHandler) SubmitProposal(w http.ResponseWriter, r *http.Request) {
	workflow, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var draft domain.ProposalDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	proposal, err := workflow.Submit(r.Context(), &draft)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, proposal)
}

// Pay settles the proposal from the wallet, creating it first when needed
func (h *WorkflowHandler) Pay(w http.ResponseWriter, r *http.Request) {
	workflow, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var draft *domain.ProposalDraft
	if err := decodeOptional(r, &draft); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	result, err := workflow.Pay(r.Context(), draft)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, result)
}

// Cancel discards the workflow
func (h *WorkflowHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["workflowId"])
	if err != nil {
		response.BadRequest(w, "Invalid workflow id", err)
		return
	}

	if err := h.registry.Discard(id); err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, map[string]string{"workflow_id": id.String(), "state": service.StateIdle.String()})
}

func (h *WorkflowHandler) lookup(w http.ResponseWriter, r *http.Request) (*service.ProposalWorkflow, bool) {
	id, err := uuid.Parse(mux.Vars(r)["workflowId"])
	if err != nil {
		response.BadRequest(w, "Invalid workflow id", err)
		return nil, false
	}

	workflow, err := h.registry.Get(id)
	if err != nil {
		response.FromError(w, err)
		return nil, false
	}
	return workflow, true
}

// decodeOptional decodes a JSON body into out, leaving out untouched when the body is empty.
func decodeOptional(r *http.Request, out any) error {
	if r.Body == nil {
		return nil
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
