package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"echoe-api/internal/domain"
	"echoe-api/internal/usecase"
)

const (
	RouteWaitlist = "/api/waitlist"
	RouteChat     = "/api/chat"
	RouteHealth   = "/healthz"

	CorrelationHeader = "X-Correlation-Id"
	ConsentCookie     = "echoe-cookie-consent"
)

const (
	msgInvalidEmail       = "Invalid email address"
	msgVerificationFailed = "Verification failed"
	msgMessageRequired    = "Message is required"
	msgMisconfigured      = "Server configuration error"
	msgSendFailed         = "Failed to send email"
	msgVerifyUnavailable  = "Verification unavailable"
	msgInternal           = "Internal server error"
	msgNotFound           = "Not found"
	msgMethodNotAllowed   = "Method not allowed"
	msgJoined             = "Successfully joined waitlist"
)

type WaitlistUseCase interface {
	Join(ctx context.Context, in domain.WaitlistSubmission) (usecase.JoinOutput, error)
}

type ChatUseCase interface {
	Reply(ctx context.Context, in domain.ChatTurn) (usecase.ChatOutput, error)
	Fallback(ctx context.Context) usecase.ChatOutput
}

type Handler struct {
	waitlist WaitlistUseCase
	chat     ChatUseCase
	logger   *zap.Logger
}

type waitlistRequest struct {
	Email          string  `json:"email"`
	TurnstileToken *string `json:"turnstileToken"`
}

type waitlistResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type chatRequest struct {
	Message json.RawMessage `json:"message"`
	Context json.RawMessage `json:"context"`
}

type chatResponse struct {
	Text string `json:"text"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

var waitlistCORS = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "POST, OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type",
}

func NewHandler(waitlist WaitlistUseCase, chat ChatUseCase, logger *zap.Logger) (*Handler, error) {
	if waitlist == nil {
		return nil, errors.New("handler: waitlist usecase must not be nil")
	}
	if chat == nil {
		return nil, errors.New("handler: chat usecase must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{waitlist: waitlist, chat: chat, logger: logger.Named("handler")}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, CorrelationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	route := normalizePath(req.Path)

	resp := h.route(ctx, route, req)
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers[CorrelationHeader] = correlationID

	h.logger.Info("request",
		zap.String("method", req.HTTPMethod),
		zap.String("route", route),
		zap.Int("status", resp.StatusCode),
		zap.String("correlation_id", correlationID),
	)
	return resp, nil
}

func (h *Handler) route(ctx context.Context, route string, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	method := strings.ToUpper(req.HTTPMethod)
	switch route {
	case RouteWaitlist:
		switch method {
		case http.MethodOptions:
			return withHeaders(events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, waitlistCORS)
		case http.MethodPost:
			return withHeaders(h.handleWaitlist(ctx, req), waitlistCORS)
		}
		return withHeaders(methodNotAllowed("POST, OPTIONS"), waitlistCORS)
	case RouteChat:
		if method == http.MethodPost {
			return h.handleChat(ctx, req)
		}
		return methodNotAllowed("POST")
	case RouteHealth:
		if method == http.MethodGet || method == http.MethodHead {
			return jsonResponse(http.StatusOK, healthResponse{Status: "healthy"})
		}
		return methodNotAllowed("GET")
	}
	return jsonResponse(http.StatusNotFound, errorResponse{Error: msgNotFound})
}

func (h *Handler) handleWaitlist(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var in waitlistRequest
	if err := decodeBody(req, &in); err != nil {
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: msgInvalidEmail})
	}

	sub := domain.WaitlistSubmission{
		Email:    in.Email,
		RemoteIP: sourceIP(req),
		Consent:  consentFromCookies(req),
	}
	if in.TurnstileToken != nil {
		sub.TurnstileToken = *in.TurnstileToken
	}

	if _, err := h.waitlist.Join(ctx, sub); err != nil {
		return h.errorResponse(err)
	}
	return jsonResponse(http.StatusOK, waitlistResponse{Success: true, Message: msgJoined})
}

func (h *Handler) handleChat(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var in chatRequest
	if err := decodeBody(req, &in); err != nil {
		// An unreadable body still gets a demo reply; the chat never hard-fails.
		h.logger.Warn("undecodable chat body", zap.Error(err))
		return jsonResponse(http.StatusOK, chatResponse{Text: h.chat.Fallback(ctx).Text})
	}
	var message string
	if len(in.Message) == 0 || string(in.Message) == "null" || json.Unmarshal(in.Message, &message) != nil {
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: msgMessageRequired})
	}

	out, err := h.chat.Reply(ctx, domain.ChatTurn{Message: message, Context: contextText(in.Context)})
	if err != nil {
		return h.errorResponse(err)
	}
	return jsonResponse(http.StatusOK, chatResponse{Text: out.Text})
}

func (h *Handler) errorResponse(err error) events.APIGatewayProxyResponse {
	var usecaseErr *usecase.Error
	if !errors.As(err, &usecaseErr) {
		h.logger.Error("unexpected usecase error", zap.Error(err))
		return jsonResponse(http.StatusInternalServerError, errorResponse{Error: msgInternal})
	}
	return jsonResponse(statusFor(usecaseErr.Code), errorResponse{Error: messageFor(usecaseErr)})
}

func statusFor(code usecase.ErrorCode) int {
	if code == usecase.ErrorInvalidInput {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// messageFor picks the caller-facing text. Upstream bodies never reach the caller.
func messageFor(err *usecase.Error) string {
	switch err.Reason {
	case usecase.ReasonInvalidEmail:
		return msgInvalidEmail
	case usecase.ReasonTurnstileRejected:
		return msgVerificationFailed
	case usecase.ReasonMissingMessage:
		return msgMessageRequired
	case usecase.ReasonTurnstileUnavailable:
		return msgVerifyUnavailable
	case usecase.ReasonResendError:
		return msgSendFailed
	}
	if err.Code == usecase.ErrorServerMisconfigured {
		return msgMisconfigured
	}
	return msgInternal
}

func decodeBody(req events.APIGatewayProxyRequest, v any) error {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return err
		}
		body = decoded
	}
	return json.Unmarshal(body, v)
}

// contextText accepts the dashboard context as a JSON string or any other
// JSON value, which is passed through as its compact encoding.
func contextText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func consentFromCookies(req events.APIGatewayProxyRequest) *domain.ConsentPreferences {
	lines := req.MultiValueHeaders[http.CanonicalHeaderKey("cookie")]
	if len(lines) == 0 {
		if v := headerValue(req.Headers, "Cookie"); v != "" {
			lines = []string{v}
		}
	}
	for _, line := range lines {
		cookies, err := http.ParseCookie(line)
		if err != nil {
			continue
		}
		for _, c := range cookies {
			if c.Name != ConsentCookie {
				continue
			}
			return parseConsent(c.Value)
		}
	}
	return nil
}

func parseConsent(value string) *domain.ConsentPreferences {
	raw, err := url.PathUnescape(value)
	if err != nil {
		return nil
	}
	var prefs domain.ConsentPreferences
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return nil
	}
	return &prefs
}

func sourceIP(req events.APIGatewayProxyRequest) string {
	if ip := req.RequestContext.Identity.SourceIP; ip != "" {
		return ip
	}
	fwd := headerValue(req.Headers, "X-Forwarded-For")
	if first, _, _ := strings.Cut(fwd, ","); first != "" {
		return strings.TrimSpace(first)
	}
	return ""
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func normalizePath(p string) string {
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}

func methodNotAllowed(allow string) events.APIGatewayProxyResponse {
	resp := jsonResponse(http.StatusMethodNotAllowed, errorResponse{Error: msgMethodNotAllowed})
	resp.Headers["Allow"] = allow
	return resp
}

func withHeaders(resp events.APIGatewayProxyResponse, extra map[string]string) events.APIGatewayProxyResponse {
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	for k, v := range extra {
		resp.Headers[k] = v
	}
	return resp
}

func jsonResponse(status int, body any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"` + msgInternal + `"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(b),
	}
}
