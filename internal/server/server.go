package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"echoe-api/handler"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
	unmatchedRoute  = "unmatched"
)

// ProxyHandler is the API Gateway proxy entry point served over plain HTTP.
type ProxyHandler interface {
	Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)
}

type Options struct {
	AllowedOrigins []string
	// Registry receives the HTTP collectors and backs /metrics. Defaults to a fresh registry.
	Registry *prometheus.Registry
	Logger   *zap.Logger
}

// NewRouter exposes h on the same routes API Gateway forwards, plus /metrics.
func NewRouter(h ProxyHandler, opts Options) (http.Handler, error) {
	if h == nil {
		return nil, errors.New("server: proxy handler must not be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("server")
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m, err := newMetrics(reg)
	if err != nil {
		return nil, err
	}

	proxy := adapt(h, logger)
	r := mux.NewRouter()
	r.Use(m.middleware)
	r.Handle(handler.RouteWaitlist, proxy).Methods(http.MethodPost, http.MethodOptions)
	r.Handle(handler.RouteChat, proxy).Methods(http.MethodPost)
	r.Handle(handler.RouteHealth, proxy).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.NotFoundHandler = m.instrument(unmatchedRoute, proxy)
	r.MethodNotAllowedHandler = m.instrument(unmatchedRoute, proxy)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", handler.CorrelationHeader},
		ExposedHeaders: []string{handler.CorrelationHeader},
		// Matches the status the Lambda handler gives OPTIONS.
		OptionsSuccessStatus: http.StatusOK,
	})
	return c.Handler(r), nil
}

// Run serves h on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, h http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func adapt(h ProxyHandler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		event, err := toProxyRequest(r)
		if err != nil {
			logger.Warn("read request body", zap.Error(err))
			http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
			return
		}
		resp, err := h.Handle(r.Context(), event)
		if err != nil {
			logger.Error("proxy handler failed", zap.Error(err))
			http.Error(w, `{"error":"Internal server error"}`, http.StatusInternalServerError)
			return
		}
		if err := writeProxyResponse(w, resp); err != nil {
			logger.Warn("write response", zap.Error(err))
		}
	})
}

func toProxyRequest(r *http.Request) (events.APIGatewayProxyRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return events.APIGatewayProxyRequest{}, err
	}

	headers := make(map[string]string, len(r.Header))
	multi := make(map[string][]string, len(r.Header))
	for k, vs := range r.Header {
		if len(vs) == 0 {
			continue
		}
		headers[k] = vs[len(vs)-1]
		multi[k] = append([]string(nil), vs...)
	}

	var query map[string]string
	var multiQuery map[string][]string
	if q := r.URL.Query(); len(q) > 0 {
		query = make(map[string]string, len(q))
		multiQuery = make(map[string][]string, len(q))
		for k, vs := range q {
			query[k] = vs[len(vs)-1]
			multiQuery[k] = vs
		}
	}

	resource := r.URL.Path
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			resource = tpl
		}
	}

	return events.APIGatewayProxyRequest{
		Resource:                        resource,
		Path:                            r.URL.Path,
		HTTPMethod:                      r.Method,
		Headers:                         headers,
		MultiValueHeaders:               multi,
		QueryStringParameters:           query,
		MultiValueQueryStringParameters: multiQuery,
		Body:                            string(body),
		RequestContext: events.APIGatewayProxyRequestContext{
			RequestID:  uuid.NewString(),
			Path:       r.URL.Path,
			HTTPMethod: r.Method,
			Identity:   events.APIGatewayRequestIdentity{SourceIP: remoteHost(r.RemoteAddr)},
		},
	}, nil
}

func writeProxyResponse(w http.ResponseWriter, resp events.APIGatewayProxyResponse) error {
	h := w.Header()
	// CORS is owned by the middleware and its configured origins.
	for k, v := range resp.Headers {
		if isCORSHeader(k) {
			continue
		}
		h.Set(k, v)
	}
	for k, vs := range resp.MultiValueHeaders {
		if isCORSHeader(k) {
			continue
		}
		for _, v := range vs {
			h.Add(k, v)
		}
	}

	body := []byte(resp.Body)
	if resp.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(resp.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return fmt.Errorf("decode base64 body: %w", err)
		}
		body = decoded
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}

func isCORSHeader(name string) bool {
	return strings.HasPrefix(http.CanonicalHeaderKey(name), "Access-Control-")
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
