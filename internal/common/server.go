package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"trpc.group/trpc-go/trpc-a2a-go/server"
	"trpc.group/trpc-go/trpc-a2a-go/taskmanager"

	"github.com/tuannvm/devhub/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// SetupServerOptions contains options for setting up an A2A server
type SetupServerOptions struct {
	AgentName    string
	AgentVersion string
	AgentURL     string
	Description  string
	Processor    taskmanager.TaskProcessor
	Skills       []server.AgentSkill
}

// SetupServer creates and configures an A2A server with common settings
func SetupServer(opts SetupServerOptions) (*server.A2AServer, error) {
	if opts.Processor == nil {
		return nil, errors.New("task processor is required")
	}
	description := opts.Description
	if description == "" {
		description = fmt.Sprintf("%s agent", opts.AgentName)
	}

	agentCard := server.AgentCard{
		Name:        opts.AgentName,
		Description: StringPtr(description),
		URL:         opts.AgentURL,
		Version:     opts.AgentVersion,
		Provider: &server.AgentProvider{
			Organization: "devhub",
		},
		DefaultInputModes:  []string{"text", "data"},
		DefaultOutputModes: []string{"text", "data"},
		Skills:             opts.Skills,
	}

	// Create task manager, inject processor
	taskManager, err := taskmanager.NewMemoryTaskManager(opts.Processor)
	if err != nil {
		return nil, fmt.Errorf("failed to create task manager: %w", err)
	}

	serverOpts := []server.Option{
		// JSON-RPC at root so A2AClient.SendTasks will POST to "/"
		server.WithJSONRPCEndpoint("/"),
		// Breakdowns and reviews wait on the LLM
		server.WithReadTimeout(2 * time.Minute),
		server.WithWriteTimeout(2 * time.Minute),
	}

	srv, err := server.NewA2AServer(agentCard, taskManager, serverOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	return srv, nil
}

// StartServer runs the A2A server until ctx is cancelled, then shuts it down.
func StartServer(ctx context.Context, srv *server.A2AServer, host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	errCh := make(chan error, 1)
	go func() {
		logging.Infof("Starting A2A server on %s", addr)
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("A2A server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logging.Infof("Shutting down A2A server...")
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// OpsRoute mounts an extra handler on the ops router.
type OpsRoute struct {
	Pattern string
	Handler http.Handler
}

// NewOpsRouter serves liveness and Prometheus metrics from gatherer, plus any
// extra routes.
func NewOpsRouter(gatherer prometheus.Gatherer, routes ...OpsRoute) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	for _, route := range routes {
		r.Mount(route.Pattern, route.Handler)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		ReturnJSONError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		ReturnJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// StartOpsServer serves handler on addr until ctx is cancelled.
func StartOpsServer(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Infof("Ops server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown ops server: %w", err)
	}
	return nil
}
