package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/edustack/academy-api/internal/email"
)

// testEmailRequest selects a template and supplies its data.
type testEmailRequest struct {
	To       string                 `json:"to"`
	Template string                 `json:"template"`
	Data     map[string]interface{} `json:"data"`
}

// handleTestEmail renders a named template and sends it to one recipient.
// Used by operators to verify provider credentials and template output.
//
//	POST /api/emails/test
func (s *Server) handleTestEmail(w http.ResponseWriter, r *http.Request) {
	var req testEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.To == "" {
		respondError(w, http.StatusBadRequest, "to is required")
		return
	}
	if req.Template == "" {
		req.Template = string(email.TemplateNotification)
	}

	msg, err := email.Render(email.TemplateKind(req.Template), req.To, req.Data)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := s.email.Send(r.Context(), msg)
	if err != nil {
		if errors.Is(err, email.ErrUnavailable) {
			respondError(w, http.StatusServiceUnavailable, "email is currently unavailable")
			return
		}
		respondError(w, http.StatusBadGateway, "email provider error")
		return
	}
	respondJSON(w, http.StatusOK, receipt)
}
