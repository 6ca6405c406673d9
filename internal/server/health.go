/**
 * gRPC health service for the document scan worker
 *
 * Reports SERVING while the readiness check passes and NOT_SERVING once it
 * fails or the worker starts shutting down. Orchestrators probe it with
 * grpc_health_probe.
 */

package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/adverant/nexus/docscan-worker/internal/logging"
)

// ServiceName is the health service name reported alongside the overall status
const ServiceName = "docscan.Worker"

// CheckFunc reports whether the worker can take jobs
type CheckFunc func(ctx context.Context) error

// HealthServer serves grpc.health.v1 for the worker
type HealthServer struct {
	grpc     *grpc.Server
	health   *health.Server
	check    CheckFunc
	interval time.Duration
	logger   *logging.Logger

	stopOnce sync.Once
	done     chan struct{}
}

// NewHealthServer creates a new HealthServer. check may be nil.
func NewHealthServer(check CheckFunc, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	reflection.Register(grpcServer)

	s := &HealthServer{
		grpc:     grpcServer,
		health:   hs,
		check:    check,
		interval: interval,
		logger:   logging.NewLogger("Health"),
		done:     make(chan struct{}),
	}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Serve listens on addr and blocks until Stop
func (s *HealthServer) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.logger.Info("health server listening", "addr", lis.Addr().String())

	go s.watch()

	if err := s.grpc.Serve(lis); err != nil {
		return fmt.Errorf("health server stopped: %w", err)
	}
	return nil
}

// Refresh runs the check once and updates the reported status
func (s *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.check != nil {
		if err := s.check(ctx); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.setStatus(status)
	return status
}

func (s *HealthServer) watch() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		s.Refresh(ctx)
		cancel()

		select {
		case <-s.done:
			return
		case <-ticker.C:
		}
	}
}

func (s *HealthServer) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	select {
	case <-s.done:
		return
	default:
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Stop reports NOT_SERVING and stops the gRPC server
func (s *HealthServer) Stop() {
	s.stopOnce.Do(func() {
		s.health.Shutdown()
		close(s.done)
		s.grpc.GracefulStop()
	})
}
