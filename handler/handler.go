package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"coach-agent/internal/observability"
	"coach-agent/internal/usecase"
)

const (
	headerCorrelationID = "X-Correlation-Id"
	errorNotFound       = "NOT_FOUND"
)

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET,POST,OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type",
}

type UseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	StartExercise(ctx context.Context, in usecase.ExerciseInput) (usecase.ChatOutput, error)
	Progress(ctx context.Context, sessionID string) (usecase.ProgressOutput, error)
}

type Handler struct {
	uc UseCase
}

type chatRequest struct {
	Message   string       `json:"message"`
	SessionID string       `json:"sessionId"`
	Mode      string       `json:"mode"`
	State     *clientState `json:"state"`
}

type clientState struct {
	ChildName   string `json:"childName"`
	Age         int    `json:"age"`
	Preferences *struct {
		Interests []string `json:"interests"`
	} `json:"preferences"`
}

type exerciseRequest struct {
	ExerciseType string `json:"exerciseType"`
	SessionID    string `json:"sessionId"`
}

type progressRequest struct {
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type progressResponse struct {
	SessionID string         `json:"sessionId"`
	ChildName string         `json:"childName"`
	Stars     int            `json:"stars"`
	Mode      string         `json:"mode"`
	Streak    int            `json:"streak"`
	Badges    []string       `json:"badges"`
	Skills    map[string]int `json:"skills"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// endpoint handles one decoded API route and returns status and payload.
type endpoint func(ctx context.Context, body []byte) (int, any)

func NewHandler(uc UseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: usecase must not be nil")
	}
	return &Handler{uc: uc}, nil
}

// Handle serves API Gateway proxy events.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(event.Headers, headerCorrelationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx = observability.WithCorrelationID(ctx, correlationID)

	headers := map[string]string{headerCorrelationID: correlationID}
	for k, v := range corsHeaders {
		headers[k] = v
	}

	if event.HTTPMethod == http.MethodOptions {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent, Headers: headers}, nil
	}

	var status int
	var payload any
	ep, ok := h.endpoints()[routeKey(event.HTTPMethod, event.Path)]
	if !ok {
		status, payload = http.StatusNotFound, errorResponse{Error: errorNotFound}
	} else if body, err := eventBody(event); err != nil {
		status, payload = invalidBody(ctx, err)
	} else {
		status, payload = ep(ctx, body)
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	headers["Content-Type"] = "application/json"
	return events.APIGatewayProxyResponse{StatusCode: status, Headers: headers, Body: string(b)}, nil
}

func eventBody(event events.APIGatewayProxyRequest) ([]byte, error) {
	if !event.IsBase64Encoded {
		return []byte(event.Body), nil
	}
	return base64.StdEncoding.DecodeString(event.Body)
}

func (h *Handler) endpoints() map[string]endpoint {
	return map[string]endpoint{
		routeKey(http.MethodPost, "/api/chat"):     h.chat,
		routeKey(http.MethodPost, "/api/progress"): h.progress,
		routeKey(http.MethodPost, "/api/exercise"): h.exercise,
	}
}

func routeKey(method, path string) string {
	path = strings.TrimSpace(path)
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return strings.ToUpper(method) + " " + path
}

func (h *Handler) chat(ctx context.Context, body []byte) (int, any) {
	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return invalidBody(ctx, err)
	}
	in := usecase.ChatInput{
		SessionID: req.SessionID,
		Message:   req.Message,
		Mode:      req.Mode,
	}
	if req.State != nil {
		in.Profile = &usecase.Profile{ChildName: req.State.ChildName, Age: req.State.Age}
		if req.State.Preferences != nil {
			in.Profile.Interests = append([]string{}, req.State.Preferences.Interests...)
		}
	}
	out, err := h.uc.Chat(ctx, in)
	if err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, chatResponse{Response: out.Response}
}

func (h *Handler) exercise(ctx context.Context, body []byte) (int, any) {
	var req exerciseRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return invalidBody(ctx, err)
	}
	out, err := h.uc.StartExercise(ctx, usecase.ExerciseInput{SessionID: req.SessionID, ExerciseType: req.ExerciseType})
	if err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, chatResponse{Response: out.Response}
}

func (h *Handler) progress(ctx context.Context, body []byte) (int, any) {
	var req progressRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return invalidBody(ctx, err)
	}
	out, err := h.uc.Progress(ctx, req.SessionID)
	if err != nil {
		return errorResult(ctx, err)
	}
	badges := out.Badges
	if badges == nil {
		badges = []string{}
	}
	skills := out.Skills
	if skills == nil {
		skills = map[string]int{}
	}
	return http.StatusOK, progressResponse{
		SessionID: out.SessionID,
		ChildName: out.ChildName,
		Stars:     out.Stars,
		Mode:      string(out.Mode),
		Streak:    out.Streak,
		Badges:    badges,
		Skills:    skills,
	}
}

func invalidBody(ctx context.Context, err error) (int, any) {
	observability.LoggerFromContext(ctx).InfoContext(ctx, "invalid request body", "err", err)
	return http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput)}
}

func errorResult(ctx context.Context, err error) (int, any) {
	code := usecase.CodeOf(err)
	status := statusFor(code)
	log := observability.LoggerFromContext(ctx)
	if status >= http.StatusInternalServerError {
		log.ErrorContext(ctx, "request failed", "code", code, "err", err)
	} else {
		log.WarnContext(ctx, "request rejected", "code", code, "err", err)
	}
	return status, errorResponse{Error: string(code)}
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
