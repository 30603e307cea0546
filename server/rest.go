package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/newsrelay/pkg/domain"
	"github.com/umputun/newsrelay/pkg/poller"
)

// statusResponse is the poller status with server info
type statusResponse struct {
	poller.Status
	Version string    `json:"version"`
	Time    time.Time `json:"time"`
}

// snapshotResponse lists stored headlines, newest first
type snapshotResponse struct {
	Count     int      `json:"count"`
	Headlines []string `json:"headlines"`
}

// checkResponse describes the outcome of an on-demand cycle
type checkResponse struct {
	Changed  bool   `json:"changed"`
	Baseline bool   `json:"baseline"`
	Headline string `json:"headline,omitempty"`
	Sent     int    `json:"sent"`
	Error    string `json:"error,omitempty"`
}

// statusHandler returns poller status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, r, http.StatusOK, statusResponse{
		Status:  s.poller.Status(),
		Version: s.version,
		Time:    time.Now().UTC(),
	})
}

// snapshotHandler returns the stored snapshot
func (s *Server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.Load(r.Context())
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		renderError(w, r, err, http.StatusNotFound)
		return
	}
	if err != nil {
		lgr.Printf("[ERROR] failed to load snapshot: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, snapshotResponse{Count: snap.Len(), Headlines: snap.Headlines()})
}

// checkHandler runs a poll cycle right away, refuses if a cycle is in flight
func (s *Server) checkHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.poller.TriggerCycle(r.Context())
	if errors.Is(err, poller.ErrBusy) {
		renderError(w, r, err, http.StatusConflict)
		return
	}
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	resp := checkResponse{Changed: res.Changed, Baseline: res.Baseline, Headline: res.Headline, Sent: res.Sent}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	renderJSON(w, r, http.StatusOK, resp)
}
