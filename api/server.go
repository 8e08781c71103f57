package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Gaurav-Gosain/asrtdash/results"
)

const shutdownTimeout = 5 * time.Second

// Server exposes a read-only JSON view of a ResultStore.
type Server struct {
	Logger *zap.Logger
	Store  *results.ResultStore
}

func NewServer(l *zap.Logger, store *results.ResultStore) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{Logger: l, Store: store}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.AllowAll().Handler)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/results", s.handleSnapshot)
		r.Get("/results/{index}", s.handleResultByIndex)
		r.Get("/history", s.handleHistory)
		r.Get("/stats", s.handleStats)
	})

	return r
}

// ListenAndServe serves the router on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.Logger.Info("api_listen", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.Logger.Info("api_stopped")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("api_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
		)
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.Snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.Results())
}

func (s *Server) handleResultByIndex(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "index must be an integer"})
		return
	}
	// History only grows, so an index below the count stays valid.
	if idx < 0 || idx >= s.Store.TotalCount() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no result at index"})
		return
	}
	writeJSON(w, http.StatusOK, s.Store.GetByIndex(idx))
}

// rateView is a Rate with its fraction; Rate is null when the window is empty.
type rateView struct {
	Errors  int      `json:"errors"`
	Total   int      `json:"total"`
	Rate    *float64 `json:"rate"`
	Display string   `json:"display"`
}

func newRateView(r results.Rate) rateView {
	v := rateView{Errors: r.Errors, Total: r.Total, Display: r.String()}
	if f, ok := r.Value(); ok {
		v.Rate = &f
	}
	return v
}

type statsView struct {
	LatestUpdate string   `json:"latest_update"`
	Total        int      `json:"total"`
	BatchOK      int      `json:"batch_ok"`
	BatchFailed  int      `json:"batch_failed"`
	LastHour     rateView `json:"last_hour"`
	LastDay      rateView `json:"last_day"`
	LastWeek     rateView `json:"last_week"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.Store.Stats()
	writeJSON(w, http.StatusOK, statsView{
		LatestUpdate: st.LatestUpdate,
		Total:        st.Total,
		BatchOK:      st.BatchOK,
		BatchFailed:  st.BatchFailed,
		LastHour:     newRateView(st.LastHour),
		LastDay:      newRateView(st.LastDay),
		LastWeek:     newRateView(st.LastWeek),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
