package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/TobiSchelling/SocialAgent/internal/content"
	"github.com/TobiSchelling/SocialAgent/internal/database"
	"github.com/TobiSchelling/SocialAgent/internal/pipeline"
	"github.com/TobiSchelling/SocialAgent/internal/service"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody reads an optional JSON body into v. An empty body is not an error.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, content.ErrInvalidRequest), errors.Is(err, service.ErrNotApproved):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrIdeaNotFound), errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, content.ErrSourceUnavailable), errors.Is(err, service.ErrNoTrendSource),
		errors.Is(err, service.ErrNoPublisher):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func queryInt(r *http.Request, key string, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && n >= 0 {
		return n
	}
	return def
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleRefreshTrends(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.RefreshTrends(r.Context())
	if err != nil {
		log.Printf("Refreshing trends failed: %v", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Trends refreshed successfully",
		"trends":  res.Trends,
		"count":   res.Count,
	})
}

func (s *Server) handleListTrends(w http.ResponseWriter, r *http.Request) {
	records, err := s.db.ListTrends(queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []content.TrendRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"trends": records, "count": len(records)})
}

// generateFailure is the single error descriptor for a failed invocation.
func generateFailure(err error) map[string]any {
	return map[string]any{
		"error":              err.Error(),
		"ideas":              []content.Idea{},
		"repurposed_content": map[string]any{},
		"scheduled_posts":    []content.ScheduledPost{},
		"trending_context":   []content.TrendRecord{},
	}
}

func (s *Server) handleGenerateIdeas(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, generateFailure(err))
		return
	}
	res, err := s.svc.GenerateIdeas(r.Context(), req)
	if err != nil {
		log.Printf("Generating ideas failed: %v", err)
		writeJSON(w, statusFor(err), generateFailure(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":            "Ideas generated successfully",
		"run_id":             res.RunID,
		"ideas":              res.Ideas,
		"repurposed_content": res.RepurposedContent,
		"scheduled_posts":    res.ScheduledPosts,
		"trending_context":   res.TrendingContext,
		"count":              len(res.Ideas),
	})
}

func (s *Server) handleListIdeas(w http.ResponseWriter, r *http.Request) {
	status := content.IdeaStatus(r.URL.Query().Get("status"))
	list, err := s.db.ListIdeas(status, queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []database.StoredIdea{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ideas": list, "count": len(list)})
}

func (s *Server) handleGetIdea(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	idea, err := s.db.GetIdea(id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Idea not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	items, err := s.db.GetIdeaContent(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	entries, err := s.ideaSchedule(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []database.StoredContent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"idea": idea, "content": items, "schedule": entries})
}

func (s *Server) handleApproveIdea(w http.ResponseWriter, r *http.Request) {
	idea, err := s.svc.ApproveIdea(pathID(r))
	if errors.Is(err, service.ErrIdeaNotFound) {
		writeError(w, http.StatusNotFound, "Idea not found")
		return
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Idea approved successfully", "idea": idea})
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req service.ScheduleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	entry, err := s.svc.ScheduleIdea(req)
	switch {
	case errors.Is(err, service.ErrIdeaNotFound):
		writeError(w, http.StatusNotFound, "Idea not found")
		return
	case errors.Is(err, service.ErrNotApproved):
		writeError(w, http.StatusBadRequest, "Idea must be approved before scheduling")
		return
	case err != nil:
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Post scheduled successfully", "scheduled_post": entry})
}

func (s *Server) handleListSchedule(w http.ResponseWriter, r *http.Request) {
	entries, err := s.db.ListSchedule(database.ScheduleStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []database.ScheduleEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scheduled_posts": entries, "count": len(entries)})
}

func (s *Server) handleRunPublisher(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.RunPublisher(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRefreshAnalytics(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.RefreshAnalytics(r.Context())
	if err != nil {
		log.Printf("Refreshing analytics failed: %v", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListAnalytics(w http.ResponseWriter, r *http.Request) {
	posts, err := s.svc.Analytics(queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts, "count": len(posts)})
}

func (s *Server) handlePostHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.svc.PostHistory(pathID(r))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": history, "count": len(history)})
}

func (s *Server) handleGetBrand(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Brand()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateBrand(w http.ResponseWriter, r *http.Request) {
	var p database.BrandProfile
	if err := decodeBody(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	saved, err := s.svc.UpdateBrand(p)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Brand profile updated successfully", "brand": saved})
}
