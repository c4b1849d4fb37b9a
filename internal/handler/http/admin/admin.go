// Package admin serves the operator endpoints: triggering a cycle out of
// schedule and inspecting the worker's current state.
package admin

import (
	"errors"
	"net/http"
	"time"

	"market-watch/internal/handler/http/respond"
	"market-watch/internal/scheduler"
	"market-watch/internal/usecase/notify"
)

// Scheduler is the slice of the cycle scheduler the admin surface needs.
type Scheduler interface {
	ForceCycle() bool
	State() scheduler.State
	LastCycle() *scheduler.LastCycle
}

// Handler serves the /cycle endpoints.
type Handler struct {
	scheduler Scheduler
	notifier  notify.Service           // nil when no channel is configured
	breakers  func() map[string]string // per-site circuit state, nil when unavailable
}

// NewHandler creates the admin handler. notifier and breakers may be nil.
func NewHandler(sched Scheduler, notifier notify.Service, breakers func() map[string]string) *Handler {
	return &Handler{scheduler: sched, notifier: notifier, breakers: breakers}
}

// Register mounts the admin routes on the given mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/cycle/trigger", h.handleTrigger)
	mux.HandleFunc("/cycle/status", h.handleStatus)
}

// triggerResponse is the body for POST /cycle/trigger.
type triggerResponse struct {
	Started bool   `json:"started"`
	State   string `json:"state"`
}

func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respond.Error(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	started := h.scheduler.ForceCycle()
	resp := triggerResponse{Started: started, State: h.scheduler.State().String()}
	if !started {
		// A cycle is already in flight; the trigger was dropped, not queued.
		respond.JSON(w, http.StatusConflict, resp)
		return
	}
	respond.JSON(w, http.StatusAccepted, resp)
}

// statusResponse is the body for GET /cycle/status.
type statusResponse struct {
	State     string            `json:"state"`
	LastCycle *lastCycleStatus  `json:"last_cycle,omitempty"`
	Channels  []channelStatus   `json:"channels,omitempty"`
	Breakers  map[string]string `json:"circuit_breakers,omitempty"`
}

type lastCycleStatus struct {
	Trigger     string    `json:"trigger"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Error       string    `json:"error,omitempty"`
	Searches    int       `json:"searches"`
	Succeeded   int64     `json:"succeeded"`
	AllFailed   int64     `json:"all_failed"`
	NewListings int64     `json:"new_listings"`
	Notified    int64     `json:"notified"`
}

type channelStatus struct {
	Name               string     `json:"name"`
	Enabled            bool       `json:"enabled"`
	CircuitBreakerOpen bool       `json:"circuit_breaker_open"`
	DisabledUntil      *time.Time `json:"disabled_until,omitempty"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respond.Error(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	resp := statusResponse{State: h.scheduler.State().String()}

	if last := h.scheduler.LastCycle(); last != nil {
		status := &lastCycleStatus{
			Trigger:    string(last.Trigger),
			StartedAt:  last.StartedAt,
			FinishedAt: last.FinishedAt,
			Error:      last.Err,
		}
		if last.Stats != nil {
			status.Searches = last.Stats.Searches
			status.Succeeded = last.Stats.Succeeded
			status.AllFailed = last.Stats.AllFailed
			status.NewListings = last.Stats.NewListings
			status.Notified = last.Stats.Notified
		}
		resp.LastCycle = status
	}

	if h.notifier != nil {
		for _, ch := range h.notifier.GetChannelHealth() {
			resp.Channels = append(resp.Channels, channelStatus{
				Name:               ch.Name,
				Enabled:            ch.Enabled,
				CircuitBreakerOpen: ch.CircuitBreakerOpen,
				DisabledUntil:      ch.DisabledUntil,
			})
		}
	}

	if h.breakers != nil {
		resp.Breakers = h.breakers()
	}

	respond.JSON(w, http.StatusOK, resp)
}
