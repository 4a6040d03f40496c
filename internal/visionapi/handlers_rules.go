package visionapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/technosupport/physical-mcp/internal/rules"
)

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Rules.ListRules())
}

type createRuleRequest struct {
	Name               string `json:"name"`
	Condition          string `json:"condition"`
	CameraID           string `json:"camera_id"`
	Priority           string `json:"priority"`
	NotificationType   string `json:"notification_type"`
	NotificationURL    string `json:"notification_url"`
	NotificationChan   string `json:"notification_channel"`
	CooldownSeconds    int    `json:"cooldown_seconds"`
	CustomMessage      string `json:"custom_message"`
	OwnerID            string `json:"owner_id"`
	OwnerName          string `json:"owner_name"`
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid_json", "request body is not valid JSON")
		return
	}
	if req.Name == "" || req.Condition == "" {
		badRequest(w, "missing_fields", "name and condition are required")
		return
	}

	rule := rules.NewWatchRule("r_"+randomID(), req.Name, req.Condition)
	rule.CameraID = req.CameraID
	if req.Priority != "" {
		rule.Priority = rules.Priority(req.Priority)
	}
	if req.CooldownSeconds > 0 {
		rule.CooldownSeconds = req.CooldownSeconds
	}
	rule.CustomMessage = req.CustomMessage
	rule.OwnerID = req.OwnerID
	rule.OwnerName = req.OwnerName

	target := rules.NotificationTarget{
		Type:    req.NotificationType,
		URL:     req.NotificationURL,
		Channel: req.NotificationChan,
	}
	if target.Type == "" || target.Type == "local" {
		if s.cfg.DefaultNotification.Type != "" && s.cfg.DefaultNotification.Type != "local" {
			target = s.cfg.DefaultNotification
		} else if target.Type == "" {
			target.Type = "local"
		}
	}
	rule.Notification = target

	s.cfg.Rules.AddRule(rule)
	if s.cfg.RulesStore != nil {
		_ = s.cfg.RulesStore.Save(s.cfg.Rules.ListRules())
	}

	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.cfg.Rules.RemoveRule(id) {
		notFound(w, "rule_not_found", "rule '"+id+"' not found")
		return
	}
	if s.cfg.Alerts != nil {
		s.cfg.Alerts.FlushRule(id)
	}
	if s.cfg.RulesStore != nil {
		_ = s.cfg.RulesStore.Save(s.cfg.Rules.ListRules())
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *Server) handleToggleRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rule, ok := s.cfg.Rules.GetRule(id)
	if !ok {
		notFound(w, "rule_not_found", "rule '"+id+"' not found")
		return
	}
	rule.Enabled = !rule.Enabled
	s.cfg.Rules.AddRule(rule)
	if s.cfg.RulesStore != nil {
		_ = s.cfg.RulesStore.Save(s.cfg.Rules.ListRules())
	}
	writeJSON(w, http.StatusOK, rule)
}
