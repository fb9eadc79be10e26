// Command navserve exposes navmesh baking and placement queries over HTTP.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"navbake"
	"navbake/detour"
	"navbake/internal/config"
	"navbake/mesh"
)

func main() {
	var (
		addr       string
		configFile string
	)
	c := &cobra.Command{
		Use:          "navserve",
		Short:        "navmesh bake and query service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			log := cfg.NewLogger(true)
			defer log.Sync()

			s := newServer(cfg, log)
			log.Info("listening", zap.String("addr", addr))
			return http.ListenAndServe(addr, s.handler())
		},
	}
	c.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	c.Flags().StringVarP(&configFile, "config", "c", "", "bake config file (YAML)")
	if err := c.Execute(); err != nil {
		os.Exit(1)
	}
}

type server struct {
	cfg *config.Config
	log *zap.Logger

	mu   sync.RWMutex
	comp *navbake.NavMeshComponent
}

func newServer(cfg *config.Config, log *zap.Logger) *server {
	return &server{cfg: cfg, log: log}
}

func (s *server) handler() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/build", s.buildHandler).Methods("POST")
	api.HandleFunc("/nearest", s.nearestHandler).Methods("GET")
	api.HandleFunc("/info", s.infoHandler).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

type buildResponse struct {
	State string `json:"state"`
	Polys int    `json:"polys"`
}

// buildHandler bakes the OBJ mesh in the request body and installs the
// result as the served navmesh.
func (s *server) buildHandler(w http.ResponseWriter, r *http.Request) {
	tri, err := mesh.ReadOBJ(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts := s.cfg.Build
	if p := r.URL.Query().Get("partition"); p != "" {
		method, err := navbake.ParsePartitionMethod(p)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		opts.Partition = method
	}

	comp, err := navbake.Build(tri, opts, s.log)
	if err != nil {
		s.log.Error("bake failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	s.mu.Lock()
	if s.comp != nil {
		s.comp.Destroy()
	}
	s.comp = comp
	s.mu.Unlock()

	writeJSON(w, buildResponse{State: comp.State().String(), Polys: comp.PolyCount()})
}

type nearestResponse struct {
	Found bool       `json:"found"`
	Ref   uint32     `json:"ref"`
	Point [3]float32 `json:"point"`
}

// nearestHandler answers placement queries against the current navmesh.
func (s *server) nearestHandler(w http.ResponseWriter, r *http.Request) {
	pos, err := queryVec(r, "x", "y", "z")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.RLock()
	comp := s.comp
	s.mu.RUnlock()
	if comp == nil || comp.Query() == nil {
		http.Error(w, "no navmesh built", http.StatusConflict)
		return
	}

	ref, pt, err := comp.Query().FindNearestPoly(pos, []float32{2, 4, 2}, detour.NewQueryFilter())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := nearestResponse{Found: ref != 0, Ref: uint32(ref)}
	copy(resp.Point[:], pt)
	writeJSON(w, resp)
}

func (s *server) infoHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	comp := s.comp
	s.mu.RUnlock()
	if comp == nil {
		http.Error(w, "no navmesh built", http.StatusConflict)
		return
	}
	writeJSON(w, buildResponse{State: comp.State().String(), Polys: comp.PolyCount()})
}

func queryVec(r *http.Request, names ...string) ([]float32, error) {
	out := make([]float32, len(names))
	for i, name := range names {
		v, err := strconv.ParseFloat(r.URL.Query().Get(name), 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(v)
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
