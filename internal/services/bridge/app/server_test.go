package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

type closerFunc func() error

func (fn closerFunc) Close() error { return fn() }

func TestNewRequiresHandler(t *testing.T) {
	if _, err := New(Config{HTTPAddr: "127.0.0.1:0"}); err == nil {
		t.Fatal("expected error without handler")
	}
	if _, err := New(Config{Handler: http.NotFoundHandler()}); err == nil {
		t.Fatal("expected error without http addr")
	}
}

func TestServeAndShutdown(t *testing.T) {
	closed := make(chan struct{})
	srv, err := New(Config{
		HTTPAddr: "127.0.0.1:0",
		GRPCAddr: "127.0.0.1:0",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "ok")
		}),
		Closers: []io.Closer{closerFunc(func() error {
			close(closed)
			return errors.New("already closed")
		})},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	resp, err := http.Get("http://" + srv.HTTPAddr() + "/")
	if err != nil {
		cancel()
		t.Fatalf("http get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("unexpected body %q", body)
	}

	conn, err := grpc.NewClient(srv.GRPCAddr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		cancel()
		t.Fatalf("dial grpc: %v", err)
	}
	defer conn.Close()
	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()
	check, err := grpc_health_v1.NewHealthClient(conn).Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: HealthService})
	if err != nil {
		cancel()
		t.Fatalf("health check: %v", err)
	}
	if check.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %s", check.GetStatus())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	select {
	case <-closed:
	default:
		t.Fatal("expected closers to run")
	}
}

func TestServeWithoutGRPC(t *testing.T) {
	srv, err := New(Config{HTTPAddr: "127.0.0.1:0", Handler: http.NotFoundHandler()})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if srv.GRPCAddr() != "" {
		t.Fatalf("expected no grpc addr, got %q", srv.GRPCAddr())
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := srv.Serve(ctx); err != nil {
		t.Fatalf("serve: %v", err)
	}
}
