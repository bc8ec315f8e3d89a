package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/fes-tools/landrecon/internal/utils"
	"github.com/fes-tools/landrecon/pkg/reconcile"
	"github.com/fes-tools/landrecon/pkg/refdata"
	"github.com/fes-tools/landrecon/pkg/reprocess"
	"github.com/fes-tools/landrecon/pkg/storage"
	"github.com/sirupsen/logrus"
)

type Cycle interface {
	RunCycle(ctx context.Context) *reconcile.CycleResult
	Wait()
}

type Batcher interface {
	RunBatch(ctx context.Context) (reprocess.Result, error)
}

type ReferenceLoader interface {
	LoadAll(ctx context.Context) error
	Refresh(ctx context.Context)
}

type VesselLookup interface {
	LookupVessel(pln string, day time.Time) (refdata.VesselRecord, bool)
}

type StatsSource interface {
	Stats(ctx context.Context) (storage.Stats, error)
}

type Server struct {
	Engine    Cycle
	Queue     Batcher
	Reference ReferenceLoader
	Vessels   VesselLookup
	DB        StatsSource
	Username  string
	Password  string
	Log       logrus.FieldLogger

	// worker serialises the jobs: there is a single logical worker.
	worker sync.Mutex
}

func (s *Server) log() logrus.FieldLogger {
	if s.Log == nil {
		return utils.Discard()
	}
	return s.Log
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /jobs/landings", s.basicAuth(s.handleLandingsJob))
	mux.HandleFunc("POST /jobs/reprocess", s.basicAuth(s.handleReprocessJob))
	mux.HandleFunc("POST /reference/refresh", s.basicAuth(s.handleReferenceRefresh))
	mux.HandleFunc("POST /reference/reload", s.basicAuth(s.handleReferenceReload))
	mux.HandleFunc("GET /reference/vessels", s.basicAuth(s.handleVessel))
	mux.HandleFunc("GET /api/stats", s.basicAuth(s.handleStats))

	return mux
}

func (s *Server) Start(addr string) error {
	s.log().Infof("Starting server on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// StartRefresher refreshes the reference data every interval until ctx is
// done.
func (s *Server) StartRefresher(ctx context.Context, interval time.Duration) {
	s.log().Infof("Starting reference refresher (interval: %s)", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reference.Refresh(ctx)
		}
	}
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
