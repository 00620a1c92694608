package handler

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the agent wallet API under /api/v1.
func RegisterRoutes(router *mux.Router, walletHandler *WalletHandler, workflowHandler *WorkflowHandler) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/agents/{agentId}/eligibility", walletHandler.Eligibility).Methods("GET")
	api.HandleFunc("/agents/{agentId}/proposals", walletHandler.ListProposals).Methods("GET")
	api.HandleFunc("/agents/{agentId}/selection/{proposalId}", walletHandler.ToggleSelection).Methods("POST")
	api.HandleFunc("/agents/{agentId}/settlements", walletHandler.Settle).Methods("POST")

	api.HandleFunc("/agents/{agentId}/workflows", workflowHandler.Start).Methods("POST")
	api.HandleFunc("/workflows/{workflowId}", workflowHandler.Get).Methods("GET")
	api.HandleFunc("/workflows/{workflowId}", workflowHandler.Cancel).Methods("DELETE")
	api.HandleFunc("/workflows/{workflowId}/mode", workflowHandler.SelectMode).Methods("PUT")
	api.HandleFunc("/workflows/{workflowId}/proposal", workflowHandler.SubmitProposal).Methods("POST")
	api.HandleFunc("/workflows/{workflowId}/payment", workflowHandler.Pay).Methods("POST")
}
