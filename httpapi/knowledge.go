package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mechatbot/mechatbot/knowledge"
)

type upsertKnowledgeRequest struct {
	Text          string         `json:"text"`
	Values        []float32      `json:"values"`
	Metadata      map[string]any `json:"metadata"`
	RevisionLabel string         `json:"revisionLabel"`
	Description   string         `json:"description"`

	// Legacy clients send the revision label under this name.
	DomainKnowledgeName string `json:"domainKnowledgeName"`
}

func (req upsertKnowledgeRequest) revisionLabel() string {
	if req.RevisionLabel != "" {
		return req.RevisionLabel
	}
	return req.DomainKnowledgeName
}

type upsertKnowledgeResponse struct {
	statusPayload
	ID      string `json:"id"`
	Created bool   `json:"created"`
}

func scopeFromVars(r *http.Request) knowledge.Scope {
	vars := mux.Vars(r)
	return knowledge.Scope{
		CreatedBy:    vars["userId"],
		InstanceName: vars["instanceName"],
	}
}

func (s *Server) upsertKnowledge(w http.ResponseWriter, r *http.Request) {
	var req upsertKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, statusBadRequest.withMessage("malformed request body"))
		return
	}

	res, err := s.manager.Upsert(r.Context(), knowledge.UpsertRequest{
		Text:          req.Text,
		Vector:        req.Values,
		Metadata:      req.Metadata,
		Scope:         scopeFromVars(r),
		RevisionLabel: req.revisionLabel(),
		Description:   req.Description,
	})
	if err != nil {
		s.logger.Warn("knowledge upsert failed", "err", err)
		writeError(w, err)
		return
	}

	message := "The knowledge is updated successfully"
	if res.Created {
		message = "The text and vector data is created successfully"
	}
	writeJSON(w, http.StatusOK, upsertKnowledgeResponse{
		statusPayload: statusOK.withMessage(message),
		ID:            res.ID,
		Created:       res.Created,
	})
}

func (s *Server) deleteKnowledge(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.manager.Delete(r.Context(), id); err != nil {
		s.logger.Warn("knowledge delete failed", "id", id, "err", err)
		writeError(w, err)
		return
	}
	writeStatus(w, statusOK.withMessage("Deleted knowledge text data and vector data"))
}

func (s *Server) deleteInstance(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromVars(r)

	removed, err := s.manager.DeleteByScope(r.Context(), scope)
	if err != nil {
		s.logger.Warn("instance delete failed", "scope", scope, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		statusPayload
		Removed int `json:"removed"`
	}{
		statusPayload: statusOK.withMessage("Deleted instance text data and vector data"),
		Removed:       removed,
	})
}

func (s *Server) deleteRevision(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromVars(r)
	label := mux.Vars(r)["label"]

	removed, err := s.manager.DeleteRevision(r.Context(), scope, label)
	if err != nil {
		s.logger.Warn("revision delete failed", "scope", scope, "label", label, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		statusPayload
		Removed int64 `json:"removed"`
	}{
		statusPayload: statusOK.withMessage("Deleted knowledge update history"),
		Removed:       removed,
	})
}

func (s *Server) listInstances(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		writeStatus(w, statusBadRequest.withMessage("userId is required"))
		return
	}

	names, err := s.store.ListInstanceNames(r.Context(), userID)
	if err != nil {
		s.logger.Warn("instance listing failed", "userId", userID, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		statusPayload
		InstanceNames []string `json:"instanceNames"`
	}{
		statusPayload: statusOK,
		InstanceNames: names,
	})
}

func (s *Server) listRevisions(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromVars(r)
	if err := scope.Validate(); err != nil {
		writeError(w, err)
		return
	}

	labels, err := s.store.ListRevisionLabels(r.Context(), scope)
	if err != nil {
		s.logger.Warn("revision listing failed", "scope", scope, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		statusPayload
		RevisionLabels []string `json:"revisionLabels"`
	}{
		statusPayload:  statusOK,
		RevisionLabels: labels,
	})
}

func (s *Server) getPersona(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromVars(r)

	prompt, err := s.store.GetPersona(r.Context(), scope)
	if err != nil {
		s.logger.Warn("persona fetch failed", "scope", scope, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		statusPayload
		Prompt string `json:"prompt"`
	}{
		statusPayload: statusOK,
		Prompt:        prompt,
	})
}

func (s *Server) setPersona(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromVars(r)

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, statusBadRequest.withMessage("malformed request body"))
		return
	}

	// Personas only exist for instances that hold knowledge.
	ids, err := s.store.ListItemIDsByScope(r.Context(), scope)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(ids) == 0 {
		writeStatus(w, statusNotFound.withMessage("The instance does not exist"))
		return
	}

	if err := s.store.SetPersona(r.Context(), scope, req.Prompt); err != nil {
		s.logger.Warn("persona update failed", "scope", scope, "err", err)
		writeError(w, err)
		return
	}
	writeStatus(w, statusOK.withMessage("Set instance persona"))
}
