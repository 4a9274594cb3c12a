package lifecycle

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/forcekit/deploy-assist/pkg/domain/errors"
)

// Transport serves an MCP server until ctx is cancelled or the peer goes away.
type Transport interface {
	Serve(ctx context.Context, mcpServer *server.MCPServer) error
}

// TransportType names a registered transport.
type TransportType string

const (
	TransportTypeStdio TransportType = "stdio"
	TransportTypeHTTP  TransportType = "http"
)

// ErrUnsupportedTransport is the cause of starting an unregistered transport.
var ErrUnsupportedTransport = stderrors.New("unsupported transport type")

// TransportRegistry holds the available transports.
type TransportRegistry struct {
	mu         sync.RWMutex
	transports map[TransportType]Transport
	logger     zerolog.Logger
}

// NewTransportRegistry creates an empty registry.
func NewTransportRegistry(logger zerolog.Logger) *TransportRegistry {
	return &TransportRegistry{
		transports: make(map[TransportType]Transport),
		logger:     logger.With().Str("component", "transport_registry").Logger(),
	}
}

// Register adds or replaces a transport.
func (r *TransportRegistry) Register(transportType TransportType, transport Transport) {
	r.mu.Lock()
	r.transports[transportType] = transport
	r.mu.Unlock()
	r.logger.Debug().Str("type", string(transportType)).Msg("Transport registered")
}

// Start serves mcpServer on the named transport and blocks until it stops.
func (r *TransportRegistry) Start(ctx context.Context, transportType TransportType, mcpServer *server.MCPServer) error {
	r.mu.RLock()
	transport, ok := r.transports[transportType]
	r.mu.RUnlock()
	if !ok {
		r.logger.Error().Str("transport_type", string(transportType)).Msg("Unsupported transport type requested")
		return errors.New(errors.CodeInvalidParameter, "transport",
			fmt.Sprintf("unsupported transport type: %s", transportType), ErrUnsupportedTransport)
	}

	r.logger.Info().Str("type", string(transportType)).Msg("Starting transport")

	if err := transport.Serve(ctx, mcpServer); err != nil {
		// cancellation is how transports are stopped
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			r.logger.Debug().Str("transport_type", string(transportType)).Msg("Transport stopped by context")
			return nil
		}
		r.logger.Error().Err(err).Str("transport_type", string(transportType)).Msg("Transport failed")
		return errors.New(errors.CodeInternalError, "transport",
			fmt.Sprintf("%s transport failed", transportType), err)
	}
	return nil
}

// StdioTransport speaks newline-delimited JSON-RPC over a reader and writer, normally the
// process's stdin and stdout.
type StdioTransport struct {
	in     io.Reader
	out    io.Writer
	logger zerolog.Logger
}

// NewStdioTransport creates a stdio transport.
func NewStdioTransport(in io.Reader, out io.Writer, logger zerolog.Logger) *StdioTransport {
	return &StdioTransport{
		in:     in,
		out:    out,
		logger: logger.With().Str("component", "stdio_transport").Logger(),
	}
}

// Serve implements Transport. End of input stops the transport without error.
func (t *StdioTransport) Serve(ctx context.Context, mcpServer *server.MCPServer) error {
	t.logger.Info().Msg("Serving MCP over stdio")
	return server.NewStdioServer(mcpServer).Listen(ctx, t.in, t.out)
}

// MCPEndpoint is the path of the streamable HTTP endpoint.
const MCPEndpoint = "/mcp"

// HTTPTransport serves the streamable HTTP transport plus a /healthz probe.
type HTTPTransport struct {
	addr   string
	logger zerolog.Logger
}

// NewHTTPTransport creates an HTTP transport listening on host:port.
func NewHTTPTransport(host string, port int, logger zerolog.Logger) *HTTPTransport {
	return &HTTPTransport{
		addr:   net.JoinHostPort(host, strconv.Itoa(port)),
		logger: logger.With().Str("component", "http_transport").Logger(),
	}
}

// Serve implements Transport.
func (t *HTTPTransport) Serve(ctx context.Context, mcpServer *server.MCPServer) error {
	listener, err := net.Listen("tcp", t.addr)
	if err != nil {
		return errors.New(errors.CodeIoError, "transport", fmt.Sprintf("failed to listen on %s", t.addr), err)
	}
	return t.serve(ctx, mcpServer, listener)
}

func (t *HTTPTransport) serve(ctx context.Context, mcpServer *server.MCPServer, listener net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle(MCPEndpoint, server.NewStreamableHTTPServer(mcpServer))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	httpServer := &http.Server{
		Handler:           t.withLogging(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	t.logger.Info().Str("addr", listener.Addr().String()).Str("endpoint", MCPEndpoint).Msg("Serving MCP over HTTP")

	done := make(chan error, 1)
	go func() {
		done <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info().Msg("Shutting down HTTP transport")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-done:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func (t *HTTPTransport) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		t.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
