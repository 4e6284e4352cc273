package grpcserver

import (
	"context"
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// TasksService is the service name reported next to the overall ("") status.
const TasksService = "todotracker.v1.Tasks"

// HealthServer serves grpc.health.v1.Health for orchestrator health checks.
type HealthServer struct {
	srv    *grpc.Server
	health *health.Server
	lis    net.Listener
}

// StartGRPC starts the health server on addr and reports SERVING for the
// overall status and TasksService. Call Shutdown to stop it.
func StartGRPC(addr string) (*HealthServer, error) {
	if addr == "" {
		addr = ":50051"
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	// Plaintext only; TLS is left to the hosting environment.
	srv := grpc.NewServer(grpc.UnaryInterceptor(logUnaryErrors))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	h := &HealthServer{srv: srv, health: hs, lis: lis}
	h.SetServing(true)

	go func() {
		if err := srv.Serve(lis); err != nil {
			log.Printf("grpc serve: %v", err)
		}
	}()
	return h, nil
}

// Addr returns the address the server listens on.
func (h *HealthServer) Addr() string { return h.lis.Addr().String() }

// SetServing flips the reported status of the overall server and TasksService.
func (h *HealthServer) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", st)
	h.health.SetServingStatus(TasksService, st)
}

// Shutdown reports NOT_SERVING and stops the server gracefully, forcing the
// stop when ctx expires first.
func (h *HealthServer) Shutdown(ctx context.Context) error {
	h.health.Shutdown()
	done := make(chan struct{})
	go func() { h.srv.GracefulStop(); close(done) }()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		h.srv.Stop()
		return ctx.Err()
	}
}

func logUnaryErrors(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		log.Printf("grpc %s: %v", info.FullMethod, err)
	}
	return resp, err
}
