package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"persona-agent/internal/domain"
	"persona-agent/internal/usecase"
)

const (
	serviceName    = "persona-agent"
	requestTimeout = 45 * time.Second
	maxMessages    = 50
)

// ChatUseCase is the single operation the handler depends on.
type ChatUseCase interface {
	Run(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

type Handler struct {
	useCase     ChatUseCase
	devMode     bool
	environment string
	logger      *slog.Logger
}

type Option func(*Handler)

// WithDevMode enables failure detail passthrough in error responses. Never
// enable in production; upstream error text can leak infrastructure names.
func WithDevMode() Option {
	return func(h *Handler) {
		h.devMode = true
	}
}

// WithEnvironment sets the deployment environment name reported by the
// status endpoint.
func WithEnvironment(env string) Option {
	return func(h *Handler) {
		if env != "" {
			h.environment = env
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHandler(uc ChatUseCase, opts ...Option) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	h := &Handler{
		useCase:     uc,
		environment: "production",
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type chatRequest struct {
	Messages []domain.Message `json:"messages"`
}

type chatResponse struct {
	Success   bool               `json:"success"`
	Response  string             `json:"response"`
	Sources   []domain.SourceRef `json:"sources"`
	Model     string             `json:"model,omitempty"`
	RequestID int64              `json:"requestId"`
	Timestamp string             `json:"timestamp"`
}

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	RequestID int64  `json:"requestId"`
}

type statusResponse struct {
	Status      string   `json:"status"`
	Service     string   `json:"service"`
	Endpoints   []string `json:"endpoints"`
	Environment string   `json:"environment"`
	Timestamp   string   `json:"timestamp"`
}

// Handle routes one API Gateway event. OPTIONS answers the CORS preflight,
// GET reports service status, POST runs the chat flow. Errors are always
// returned as a JSON envelope with a 2xx-5xx status; the Lambda error path
// is never used for request-level failures.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestID := time.Now().UnixMilli()
	corrID := correlationID(event.Headers)
	logger := h.logger.With("correlationId", corrID, "requestId", requestID)

	switch event.HTTPMethod {
	case http.MethodOptions:
		return respond(http.StatusOK, corrID, nil, ""), nil
	case http.MethodGet:
		return respondJSON(http.StatusOK, corrID, statusResponse{
			Status:      "ok",
			Service:     serviceName,
			Endpoints:   []string{"GET /", "POST /chat"},
			Environment: h.environment,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}), nil
	case http.MethodPost:
		return h.handleChat(ctx, event, requestID, corrID, logger), nil
	default:
		resp := errorJSON(http.StatusMethodNotAllowed, corrID, errorResponse{
			Error:     "method_not_allowed",
			Message:   "Use POST to chat.",
			RequestID: requestID,
		})
		resp.Headers["Allow"] = "OPTIONS, GET, POST"
		return resp, nil
	}
}

func (h *Handler) handleChat(ctx context.Context, event events.APIGatewayProxyRequest, requestID int64, corrID string, logger *slog.Logger) events.APIGatewayProxyResponse {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var req chatRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		return errorJSON(http.StatusBadRequest, corrID, errorResponse{
			Error:     "invalid_json",
			Message:   "Request body must be valid JSON.",
			RequestID: requestID,
		})
	}
	if len(req.Messages) == 0 {
		return errorJSON(http.StatusBadRequest, corrID, errorResponse{
			Error:     string(usecase.ErrorInvalidRequest),
			Message:   "messages must be a non-empty array.",
			RequestID: requestID,
		})
	}
	if len(req.Messages) > maxMessages {
		return errorJSON(http.StatusBadRequest, corrID, errorResponse{
			Error:     string(usecase.ErrorInvalidRequest),
			Message:   "Too many messages in one request.",
			RequestID: requestID,
		})
	}
	if _, ok := domain.LastUserMessage(req.Messages); !ok {
		return errorJSON(http.StatusBadRequest, corrID, errorResponse{
			Error:     string(usecase.ErrorNoUserMessage),
			Message:   "At least one user message is required.",
			RequestID: requestID,
		})
	}

	out, err := h.useCase.Run(ctx, usecase.ChatInput{Messages: req.Messages})
	if err != nil {
		return h.errorFrom(err, requestID, corrID, logger)
	}

	logger.Info("chat completed", "model", out.ModelUsed, "grounded", out.Grounded, "sources", len(out.Sources))
	return respondJSON(http.StatusOK, corrID, chatResponse{
		Success:   true,
		Response:  out.Response,
		Sources:   out.Sources,
		Model:     out.ModelUsed,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) errorFrom(err error, requestID int64, corrID string, logger *slog.Logger) events.APIGatewayProxyResponse {
	code := usecase.ErrorUnexpected
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		code = ucErr.Code
	}
	logger.Error("chat failed", "code", string(code), "err", err)

	body := errorResponse{
		Error:     string(code),
		Message:   publicMessage(code),
		RequestID: requestID,
	}
	if h.devMode {
		body.Details = err.Error()
	}
	return errorJSON(statusFor(code), corrID, body)
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidRequest, usecase.ErrorNoUserMessage:
		return http.StatusBadRequest
	case usecase.ErrorAuthentication:
		return http.StatusUnauthorized
	case usecase.ErrorEmbedding:
		return http.StatusUnprocessableEntity
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorKnowledgeBase:
		return http.StatusServiceUnavailable
	case usecase.ErrorTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func publicMessage(code usecase.ErrorCode) string {
	switch code {
	case usecase.ErrorInvalidRequest:
		return "The request was malformed."
	case usecase.ErrorNoUserMessage:
		return "At least one user message is required."
	case usecase.ErrorAuthentication:
		return "The service could not authenticate with an upstream provider."
	case usecase.ErrorEmbedding:
		return "The question could not be processed."
	case usecase.ErrorRateLimited:
		return "Too many requests right now. Please retry shortly."
	case usecase.ErrorKnowledgeBase:
		return "The knowledge base is temporarily unavailable."
	case usecase.ErrorTimeout:
		return "The request took too long to complete."
	default:
		return "Something went wrong. Please try again."
	}
}

// correlationID returns the inbound X-Correlation-Id header regardless of
// casing, or a fresh UUID.
func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "X-Correlation-Id") && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func baseHeaders(corrID string) map[string]string {
	return map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "OPTIONS, GET, POST",
		"Access-Control-Allow-Headers": "Content-Type, X-Correlation-Id",
		"X-Correlation-Id":             corrID,
	}
}

func respond(status int, corrID string, headers map[string]string, body string) events.APIGatewayProxyResponse {
	merged := baseHeaders(corrID)
	for k, v := range headers {
		merged[k] = v
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    merged,
		Body:       body,
	}
}

func respondJSON(status int, corrID string, payload any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(payload)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    baseHeaders(corrID),
			Body:       `{"success":false,"error":"unexpected_error","message":"Failed to encode response."}`,
		}
	}
	return respond(status, corrID, nil, string(raw))
}

func errorJSON(status int, corrID string, body errorResponse) events.APIGatewayProxyResponse {
	body.Success = false
	return respondJSON(status, corrID, body)
}
