package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPServer exposes the record API the proxy consumes. Errors use the
// {"detail": ...} body shape so validation messages survive the pass-through
// at the proxy untouched.
type HTTPServer struct {
	service *Service
	search  OpportunitySearcher
}

// OpportunitySearcher answers search queries; nil falls back to the store.
type OpportunitySearcher interface {
	Search(ctx context.Context, ownerID, query string, limit int) ([]Opportunity, error)
}

func NewHTTPServer(service *Service) *HTTPServer {
	return &HTTPServer{service: service}
}

// WithSearch attaches an external search backend (Meilisearch). Without it
// search queries go straight to the store.
func (s *HTTPServer) WithSearch(search OpportunitySearcher) *HTTPServer {
	s.search = search
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("Content-Type", "application/json")
		s.handle(writer, r)
		log.Printf(`{"service":"record","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			r.Method, r.URL.Path, writer.status, time.Since(started).Milliseconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.URL.Path == "/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	parts := splitPath(r.URL.Path)

	switch {
	case len(parts) == 1 && parts[0] == "opportunities":
		switch r.Method {
		case http.MethodGet:
			s.handleListOpportunities(w, r)
		case http.MethodPost:
			s.handleCreateOpportunity(w, r)
		default:
			writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return

	case len(parts) == 2 && parts[0] == "opportunities" && parts[1] == "search":
		if r.Method != http.MethodGet {
			writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleSearchOpportunities(w, r)
		return

	case len(parts) == 2 && parts[0] == "opportunities":
		s.handleOpportunity(w, r, parts[1])
		return

	case len(parts) == 3 && parts[0] == "opportunities" && parts[2] == "strategy":
		if r.Method != http.MethodGet {
			writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleGenerateStrategy(w, r, parts[1])
		return

	case len(parts) == 4 && parts[0] == "opportunities" && parts[2] == "strategy" && parts[3] == "latest":
		if r.Method != http.MethodGet {
			writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleLatestStrategy(w, r, parts[1])
		return

	case len(parts) == 1 && parts[0] == "interactions":
		switch r.Method {
		case http.MethodGet:
			s.handleListInteractions(w, r)
		case http.MethodPost:
			s.handleCreateInteraction(w, r)
		default:
			writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return

	case len(parts) == 2 && parts[0] == "interactions":
		if r.Method != http.MethodDelete {
			writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleDeleteInteraction(w, r, parts[1])
		return

	case len(parts) == 1 && parts[0] == "users":
		if r.Method != http.MethodPost {
			writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleUpsertUser(w, r)
		return

	case len(parts) == 2 && parts[0] == "users":
		if r.Method != http.MethodGet {
			writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleGetUser(w, r, parts[1])
		return
	}

	writeDetail(w, http.StatusNotFound, "not found")
}

func (s *HTTPServer) handleListOpportunities(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("user_id")
	opportunities, err := s.service.ListOpportunities(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if opportunities == nil {
		opportunities = []Opportunity{}
	}
	writeJSON(w, http.StatusOK, opportunities)
}

func (s *HTTPServer) handleCreateOpportunity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name   string  `json:"name"`
		Email  string  `json:"email"`
		Status string  `json:"status"`
		Value  float64 `json:"value"`
		UserID string  `json:"user_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	opp, err := s.service.CreateOpportunity(r.Context(), CreateOpportunityInput{
		Name:    body.Name,
		Email:   body.Email,
		Status:  body.Status,
		Value:   body.Value,
		OwnerID: body.UserID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, opp)
}

func (s *HTTPServer) handleOpportunity(w http.ResponseWriter, r *http.Request, id string) {
	ownerID := r.URL.Query().Get("user_id")
	switch r.Method {
	case http.MethodGet:
		opp, err := s.service.GetOpportunity(r.Context(), id, ownerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, opp)

	case http.MethodPatch:
		var patch OpportunityPatch
		if err := decodeBody(r, &patch); err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		opp, err := s.service.UpdateOpportunity(r.Context(), id, ownerID, patch)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, opp)

	case http.MethodDelete:
		if err := s.service.DeleteOpportunity(r.Context(), id, ownerID); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleSearchOpportunities(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("user_id")
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "limit must be an integer")
			return
		}
		limit = parsed
	}

	if s.search != nil {
		results, err := s.search.Search(r.Context(), ownerID, query, limit)
		if err == nil {
			if results == nil {
				results = []Opportunity{}
			}
			writeJSON(w, http.StatusOK, results)
			return
		}
		log.Printf("record: search backend error, falling back to store: %v", err)
	}

	results, err := s.service.SearchOpportunities(r.Context(), ownerID, query, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if results == nil {
		results = []Opportunity{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *HTTPServer) handleGenerateStrategy(w http.ResponseWriter, r *http.Request, opportunityID string) {
	result, err := s.service.GenerateStrategy(r.Context(), opportunityID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleLatestStrategy(w http.ResponseWriter, r *http.Request, opportunityID string) {
	result, err := s.service.LatestStrategy(r.Context(), opportunityID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	opportunityID := r.URL.Query().Get("opportunity_id")
	interactions, err := s.service.ListInteractions(r.Context(), opportunityID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if interactions == nil {
		interactions = []Interaction{}
	}
	writeJSON(w, http.StatusOK, interactions)
}

func (s *HTTPServer) handleCreateInteraction(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OpportunityID string `json:"opportunity_id"`
		Type          string `json:"type"`
		Notes         string `json:"notes"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	interaction, err := s.service.CreateInteraction(r.Context(), CreateInteractionInput{
		OpportunityID: body.OpportunityID,
		Type:          body.Type,
		Notes:         body.Notes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, interaction)
}

func (s *HTTPServer) handleDeleteInteraction(w http.ResponseWriter, r *http.Request, id string) {
	ownerID := r.URL.Query().Get("user_id")
	if err := s.service.DeleteInteraction(r.Context(), id, ownerID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleUpsertUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		FullName string `json:"full_name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := s.service.UpsertUserProfile(r.Context(), UpsertUserInput{
		ID:       body.ID,
		Email:    body.Email,
		FullName: body.FullName,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *HTTPServer) handleGetUser(w http.ResponseWriter, r *http.Request, id string) {
	profile, err := s.service.GetUserProfile(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func writeServiceError(w http.ResponseWriter, err error) {
	var validation *ValidationError
	switch {
	case errors.As(err, &validation):
		writeDetail(w, http.StatusUnprocessableEntity, validation.Message)
	case errors.Is(err, ErrNotFound):
		writeDetail(w, http.StatusNotFound, "not found")
	default:
		log.Printf("record: internal error: %v", err)
		writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
