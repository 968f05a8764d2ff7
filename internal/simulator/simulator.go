// Package simulator serves simulated fleets over HTTP: the metrics endpoint
// read by the HTTP collector and the fleet and load balancer endpoints driven
// by the HTTP fleet manager.
package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/OldStager01/predictive-autoscaler/internal/fleet"
	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/internal/trace"
	"github.com/OldStager01/predictive-autoscaler/pkg/validation"
)

type Config struct {
	Port int
	// Defaults for fleets created on first use.
	Fleet FleetConfig
}

type Simulator struct {
	config     Config
	fleets     map[string]*FleetSim
	mu         sync.RWMutex
	httpServer *http.Server
}

func New(cfg Config) *Simulator {
	if cfg.Port == 0 {
		cfg.Port = 9000
	}
	if cfg.Fleet.InitialInstances == 0 {
		cfg.Fleet.InitialInstances = 3
	}
	if cfg.Fleet.BaseCPU == 0 {
		cfg.Fleet.BaseCPU = 50
	}
	if cfg.Fleet.BaseMemory == 0 {
		cfg.Fleet.BaseMemory = 60
	}

	return &Simulator{
		config: cfg,
		fleets: make(map[string]*FleetSim),
	}
}

func cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (s *Simulator) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", cors(s.healthHandler))
	mux.HandleFunc("GET /metrics/{id}", cors(s.metricsHandler))
	mux.HandleFunc("GET /fleet/{id}", cors(s.getFleetStateHandler))
	mux.HandleFunc("PUT /fleet/{id}", cors(s.setDesiredHandler))
	mux.HandleFunc("POST /lb/{id}/refresh", cors(s.refreshHandler))
	mux.HandleFunc("GET /fleets", cors(s.listFleetsHandler))
	mux.HandleFunc("GET /fleets/{id}", cors(s.getFleetHandler))
	mux.HandleFunc("POST /fleets/{id}", cors(s.createFleetHandler))
	mux.HandleFunc("PATCH /fleets/{id}", cors(s.updateFleetHandler))
	mux.HandleFunc("DELETE /fleets/{id}", cors(s.deleteFleetHandler))
	mux.HandleFunc("POST /spike", cors(s.spikeHandler))
	mux.HandleFunc("POST /pattern", cors(s.patternHandler))

	return mux
}

func (s *Simulator) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Infof("Simulator listening on %s", addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Simulator server error: %v", err)
		}
	}()

	return nil
}

func (s *Simulator) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Simulator) now() time.Time {
	if s.config.Fleet.Now != nil {
		return s.config.Fleet.Now()
	}
	return time.Now()
}

func (s *Simulator) GetOrCreateFleet(id string) *FleetSim {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, exists := s.fleets[id]; exists {
		return f
	}

	f := NewFleetSim(id, s.config.Fleet)
	s.fleets[id] = f

	logger.WithFleet(id).Infof("Created simulated fleet with %d instances", s.config.Fleet.InitialInstances)
	return f
}

func (s *Simulator) GetFleet(id string) (*FleetSim, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, exists := s.fleets[id]
	return f, exists
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Simulator) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "fleet-simulator",
	})
}

func (s *Simulator) metricsHandler(w http.ResponseWriter, r *http.Request) {
	f := s.GetOrCreateFleet(r.PathValue("id"))
	writeJSON(w, http.StatusOK, f.CollectMetrics())
}

func (s *Simulator) getFleetStateHandler(w http.ResponseWriter, r *http.Request) {
	f := s.GetOrCreateFleet(r.PathValue("id"))
	writeJSON(w, http.StatusOK, f.State())
}

func (s *Simulator) setDesiredHandler(w http.ResponseWriter, r *http.Request) {
	var req fleet.DesiredRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	f := s.GetOrCreateFleet(r.PathValue("id"))
	if err := f.SetDesired(r.Context(), req.Desired); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, fleet.ErrInvalidTarget) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	logger.WithFleet(r.PathValue("id")).Infof("Desired instance count set to %d", req.Desired)
	writeJSON(w, http.StatusOK, f.State())
}

func (s *Simulator) refreshHandler(w http.ResponseWriter, r *http.Request) {
	f, exists := s.GetFleet(r.PathValue("id"))
	if !exists {
		http.Error(w, "fleet not found", http.StatusNotFound)
		return
	}

	members := f.RefreshMembers()
	writeJSON(w, http.StatusOK, map[string]int{"members": members})
}

func (s *Simulator) listFleetsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	fleets := make([]FleetStatus, 0, len(s.fleets))
	for _, f := range s.fleets {
		fleets = append(fleets, f.Status())
	}
	s.mu.RUnlock()

	slices.SortFunc(fleets, func(a, b FleetStatus) int {
		return strings.Compare(a.ID, b.ID)
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"fleets": fleets,
		"count":  len(fleets),
	})
}

func (s *Simulator) getFleetHandler(w http.ResponseWriter, r *http.Request) {
	f, exists := s.GetFleet(r.PathValue("id"))
	if !exists {
		http.Error(w, "fleet not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, f.Status())
}

type CreateFleetRequest struct {
	Instances     int     `json:"instances"`
	BaseCPU       float64 `json:"base_cpu"`
	BaseMemory    float64 `json:"base_memory"`
	Variance      float64 `json:"variance"`
	Pattern       string  `json:"pattern"`
	ProvisionTime string  `json:"provision_time"`
	DrainTime     string  `json:"drain_time"`
}

func (s *Simulator) createFleetHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateFleetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cfg := s.config.Fleet
	if req.Instances > 0 {
		cfg.InitialInstances = req.Instances
	}
	if req.BaseCPU > 0 {
		cfg.BaseCPU = req.BaseCPU
	}
	if req.BaseMemory > 0 {
		cfg.BaseMemory = req.BaseMemory
	}
	if req.Variance > 0 {
		cfg.Variance = req.Variance
	}
	if d, err := time.ParseDuration(req.ProvisionTime); err == nil {
		cfg.ProvisionTime = d
	}
	if d, err := time.ParseDuration(req.DrainTime); err == nil {
		cfg.DrainTime = d
	}

	var pattern trace.Pattern = trace.Steady{}
	if req.Pattern != "" {
		p, err := trace.Parse(req.Pattern, s.now())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		pattern = p
	}

	id := r.PathValue("id")
	if err := validation.ValidateFleetID(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f := NewFleetSim(id, cfg)
	f.SetPattern(pattern)

	s.mu.Lock()
	s.fleets[id] = f
	s.mu.Unlock()

	logger.WithFleet(id).Infof("Created fleet with %d instances", cfg.InitialInstances)
	writeJSON(w, http.StatusCreated, f.Status())
}

type UpdateFleetRequest struct {
	BaseCPU           *float64 `json:"base_cpu"`
	BaseMemory        *float64 `json:"base_memory"`
	Variance          *float64 `json:"variance"`
	MemoryCorrelation *float64 `json:"memory_correlation"`
}

func (s *Simulator) updateFleetHandler(w http.ResponseWriter, r *http.Request) {
	f, exists := s.GetFleet(r.PathValue("id"))
	if !exists {
		http.Error(w, "fleet not found", http.StatusNotFound)
		return
	}

	var req UpdateFleetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.BaseCPU != nil {
		f.SetBaseCPU(*req.BaseCPU)
	}
	if req.BaseMemory != nil {
		f.SetBaseMemory(*req.BaseMemory)
	}
	if req.Variance != nil {
		f.SetVariance(*req.Variance)
	}
	if req.MemoryCorrelation != nil {
		f.SetMemoryCorrelation(*req.MemoryCorrelation)
	}

	writeJSON(w, http.StatusOK, f.Status())
}

func (s *Simulator) deleteFleetHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.fleets[id]; !exists {
		http.Error(w, "fleet not found", http.StatusNotFound)
		return
	}

	delete(s.fleets, id)
	logger.WithFleet(id).Info("Deleted fleet")

	writeJSON(w, http.StatusOK, map[string]string{"message": "fleet deleted"})
}

type SpikeRequest struct {
	FleetID   string  `json:"fleet_id"`
	CPUTarget float64 `json:"cpu_target"`
	Duration  string  `json:"duration"`
	RampUp    string  `json:"ramp_up"`
}

func (s *Simulator) spikeHandler(w http.ResponseWriter, r *http.Request) {
	var req SpikeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FleetID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	duration, err := time.ParseDuration(req.Duration)
	if err != nil {
		duration = 5 * time.Minute
	}
	rampUp, err := time.ParseDuration(req.RampUp)
	if err != nil {
		rampUp = 30 * time.Second
	}

	f := s.GetOrCreateFleet(req.FleetID)
	f.InjectSpike(req.CPUTarget, duration, rampUp)

	logger.WithFleet(req.FleetID).Infof("Injected spike: target=%.1f%%, duration=%s", req.CPUTarget, duration)

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "spike injected",
		"fleet_id":   req.FleetID,
		"cpu_target": req.CPUTarget,
		"duration":   duration.String(),
		"ramp_up":    rampUp.String(),
	})
}

type PatternRequest struct {
	FleetID string `json:"fleet_id"`
	Pattern string `json:"pattern"`
}

func (s *Simulator) patternHandler(w http.ResponseWriter, r *http.Request) {
	var req PatternRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FleetID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	pattern, err := trace.Parse(req.Pattern, s.now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f := s.GetOrCreateFleet(req.FleetID)
	f.SetPattern(pattern)

	logger.WithFleet(req.FleetID).Infof("Set pattern %s", pattern.Name())

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "pattern set",
		"fleet_id": req.FleetID,
		"pattern":  pattern.Name(),
	})
}
