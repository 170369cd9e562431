package server

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// SimulationService is the health service name reported for the tick loop.
const SimulationService = "henhouse.simulation"

// HealthService serves the standard gRPC health protocol. The overall server
// status is SERVING while the service runs; SimulationService is NOT_SERVING
// until SetServing(true).
type HealthService struct {
	addr   string
	logger *zap.Logger
	grpc   *grpc.Server
	health *health.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewHealthService creates a HealthService that will listen on addr.
//
// Precondition: logger must be non-nil.
func NewHealthService(addr string, logger *zap.Logger) *HealthService {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(SimulationService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthService{
		addr:   addr,
		logger: logger,
		grpc:   gs,
		health: hs,
	}
}

// Addr returns the bound listen address, or "" before Start has bound it.
func (h *HealthService) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// SetServing flips the SimulationService status.
func (h *HealthService) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(SimulationService, status)
}

// Start binds the listener and serves until Stop.
//
// Postcondition: Returns nil after a graceful Stop.
func (h *HealthService) Start() error {
	lis, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}
	h.mu.Lock()
	h.listener = lis
	h.mu.Unlock()

	h.logger.Info("health service listening", zap.String("addr", lis.Addr().String()))
	if err := h.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serving health: %w", err)
	}
	return nil
}

// Stop marks every service NOT_SERVING and drains in-flight checks.
func (h *HealthService) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
