package server

import (
	"encoding/json"
	"net/http"

	"github.com/fes-tools/landrecon/internal/utils"
)

type ack struct {
	Status string   `json:"status"`
	Failed []string `json:"failed,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// Job triggers always acknowledge with 200; failures only show in the log
// and in the acknowledgement body.
func (s *Server) handleLandingsJob(w http.ResponseWriter, r *http.Request) {
	if !s.worker.TryLock() {
		writeJSON(w, http.StatusOK, ack{Status: "busy"})
		return
	}
	defer s.worker.Unlock()

	res := s.Engine.RunCycle(r.Context())
	s.Engine.Wait()
	writeJSON(w, http.StatusOK, ack{Status: "done", Failed: res.Failed})
}

func (s *Server) handleReprocessJob(w http.ResponseWriter, r *http.Request) {
	if !s.worker.TryLock() {
		writeJSON(w, http.StatusOK, ack{Status: "busy"})
		return
	}
	defer s.worker.Unlock()

	if _, err := s.Queue.RunBatch(r.Context()); err != nil {
		s.log().Errorf("[server] reprocessing job: %v", err)
		writeJSON(w, http.StatusOK, ack{Status: "done", Failed: []string{"reprocessing"}})
		return
	}
	writeJSON(w, http.StatusOK, ack{Status: "done"})
}

func (s *Server) handleReferenceRefresh(w http.ResponseWriter, r *http.Request) {
	s.Reference.Refresh(r.Context())
	writeJSON(w, http.StatusOK, ack{Status: "done"})
}

// handleReferenceReload is the one trigger that reports failure.
func (s *Server) handleReferenceReload(w http.ResponseWriter, r *http.Request) {
	if err := s.Reference.LoadAll(r.Context()); err != nil {
		s.log().Errorf("[server] reference reload: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ack{Status: "done"})
}

func (s *Server) handleVessel(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pln := q.Get("pln")
	if pln == "" {
		http.Error(w, "pln is required", http.StatusBadRequest)
		return
	}
	day, err := utils.ParseDay(q.Get("date"))
	if err != nil {
		http.Error(w, "date: "+err.Error(), http.StatusBadRequest)
		return
	}
	v, ok := s.Vessels.LookupVessel(pln, day)
	if !ok {
		http.Error(w, "vessel not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.DB.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
