package main

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"econgrid.ai/internal/render"
	"econgrid.ai/internal/sim/world"
)

// worldView is what the HTTP surface reads. All methods are safe while the
// tick loop runs.
type worldView interface {
	ID() string
	CurrentTick() uint64
	RenderState() world.RenderState
}

type observerHandlers interface {
	BootstrapHandler() http.HandlerFunc
	WSHandler() http.HandlerFunc
}

type routerConfig struct {
	World       worldView
	Observer    observerHandlers
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
	EnablePprof bool
}

func newRouter(cfg routerConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/state", func(rw http.ResponseWriter, _ *http.Request) {
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(cfg.World.RenderState())
		})
		r.Get("/frame.png", func(rw http.ResponseWriter, req *http.Request) {
			opts := render.Options{Labels: req.URL.Query().Get("labels") != "0"}
			if v := req.URL.Query().Get("cell"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil || n < 2 || n > 64 {
					http.Error(rw, "cell must be 2..64", http.StatusBadRequest)
					return
				}
				opts.CellPx = n
			}
			rw.Header().Set("Content-Type", "image/png")
			rw.Header().Set("Cache-Control", "no-store")
			_ = render.WritePNG(rw, cfg.World.RenderState(), opts)
		})
		if cfg.Observer != nil {
			r.Get("/bootstrap", cfg.Observer.BootstrapHandler())
			r.Get("/observe", cfg.Observer.WSHandler())
		}
	})

	if cfg.EnablePprof {
		r.HandleFunc("/debug/pprof/", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return r
}
