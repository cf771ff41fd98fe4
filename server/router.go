package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"whr-ladder/server/store"
	"whr-ladder/server/whr"
)

// Router exposes the rating engine over JSON. The engine itself is
// single-threaded, so every handler takes the same mutex; the round
// boundary inside Iterate is the only other synchronization point the
// model needs. db may be nil, which disables the snapshot endpoint.
func Router(base *whr.Base, db *store.DB) http.Handler {
	var mu sync.Mutex

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})

	r.Post("/api/games", func(w http.ResponseWriter, req *http.Request) {
		var in struct {
			Black    string         `json:"black"`
			White    string         `json:"white"`
			Winner   string         `json:"winner"`
			Day      int            `json:"day"`
			Handicap float64        `json:"handicap"`
			Extras   map[string]any `json:"extras"`
		}
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		mu.Lock()
		g, err := base.CreateGame(in.Black, in.White, in.Winner, in.Day, in.Handicap, in.Extras)
		mu.Unlock()
		if err != nil {
			httpError(w, statusFor(err), err)
			return
		}
		writeJSON(w, map[string]any{
			"black":    g.Black.Name,
			"white":    g.White.Name,
			"winner":   g.Winner,
			"day":      g.Day,
			"handicap": g.Handicap,
			"extras":   g.Extras,
		})
	})

	r.Post("/api/iterate", func(w http.ResponseWriter, req *http.Request) {
		var in struct {
			Count int `json:"count"`
		}
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		if in.Count <= 0 {
			in.Count = 1
		}
		mu.Lock()
		err := base.Iterate(in.Count)
		mu.Unlock()
		if err != nil {
			httpError(w, statusFor(err), err)
			return
		}
		writeJSON(w, map[string]any{"iterations": in.Count})
	})

	r.Post("/api/auto-iterate", func(w http.ResponseWriter, req *http.Request) {
		var in struct {
			TimeLimitMS int     `json:"time_limit_ms"`
			Precision   float64 `json:"precision"`
			BatchSize   int     `json:"batch_size"`
		}
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		mu.Lock()
		n, converged, err := base.AutoIterate(
			time.Duration(in.TimeLimitMS)*time.Millisecond, in.Precision, in.BatchSize)
		mu.Unlock()
		if err != nil {
			httpError(w, statusFor(err), err)
			return
		}
		writeJSON(w, map[string]any{"iterations": n, "converged": converged})
	})

	r.Get("/api/players/{name}/ratings", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		current := req.URL.Query().Get("current") == "true"
		mu.Lock()
		defer mu.Unlock()
		if current {
			dr, ok := base.CurrentRating(name)
			if !ok {
				httpError(w, http.StatusNotFound, errors.New("player has no rated days"))
				return
			}
			writeJSON(w, dr)
			return
		}
		writeJSON(w, base.RatingsForPlayer(name))
	})

	r.Get("/api/probability", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		name1, name2 := q.Get("player1"), q.Get("player2")
		if name1 == "" || name2 == "" {
			httpError(w, http.StatusBadRequest, errors.New("player1 and player2 are required"))
			return
		}
		handicap := 0.0
		if h := q.Get("handicap"); h != "" {
			v, err := strconv.ParseFloat(h, 64)
			if err != nil {
				httpError(w, http.StatusBadRequest, err)
				return
			}
			handicap = v
		}
		mu.Lock()
		p1, p2, err := base.ProbabilityFutureMatch(name1, name2, handicap)
		mu.Unlock()
		if err != nil {
			httpError(w, statusFor(err), err)
			return
		}
		writeJSON(w, map[string]any{name1: p1, name2: p2})
	})

	r.Get("/api/ratings", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		current := q.Get("current") == "true"
		mu.Lock()
		defer mu.Unlock()
		if q.Get("compact") == "true" {
			writeJSON(w, base.OrderedRatingsCompact(current))
			return
		}
		writeJSON(w, base.OrderedRatings(current))
	})

	r.Get("/api/log-likelihood", func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		ll, err := base.LogLikelihood()
		mu.Unlock()
		if err != nil {
			httpError(w, statusFor(err), err)
			return
		}
		writeJSON(w, map[string]any{"log_likelihood": ll})
	})

	r.Post("/api/save", func(w http.ResponseWriter, req *http.Request) {
		if db == nil {
			httpError(w, http.StatusServiceUnavailable, errors.New("no database configured"))
			return
		}
		mu.Lock()
		err := db.SaveBase(req.Context(), base)
		mu.Unlock()
		if err != nil {
			httpError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, map[string]any{"saved": true})
	})

	return r
}

// statusFor maps the engine's error taxonomy onto HTTP statuses: invalid
// arguments are 400s, model failures (divergence, overflow, usage-order
// bugs) are 409s.
func statusFor(err error) int {
	switch {
	case errors.Is(err, whr.ErrSelfPlay),
		errors.Is(err, whr.ErrInvalidWinner),
		errors.Is(err, whr.ErrBadRecord):
		return http.StatusBadRequest
	case errors.Is(err, whr.ErrUnstableRating),
		errors.Is(err, whr.ErrGammaOverflow),
		errors.Is(err, whr.ErrDayStateUnset):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func httpError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
