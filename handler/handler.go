package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"messenger-store/internal/domain"
	"messenger-store/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// API Gateway resource templates served by Handle.
const (
	routeSendMessage       = "POST /messages"
	routeListMessages      = "GET /conversations/{conversationId}/messages"
	routeListConversations = "GET /users/{userId}/conversations"
	routeGetConversation   = "GET /users/{userId}/conversations/{conversationId}"
)

type MessengerService interface {
	SendMessage(ctx context.Context, in usecase.SendInput) (usecase.SendOutput, error)
	ListMessages(ctx context.Context, in usecase.ListMessagesInput) (usecase.ListMessagesOutput, error)
	ListConversations(ctx context.Context, in usecase.ListConversationsInput) (usecase.ListConversationsOutput, error)
	GetConversation(ctx context.Context, in usecase.GetConversationInput) (domain.ConversationSummary, error)
}

type Handler struct {
	svc MessengerService
}

func NewHandler(svc MessengerService) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("handler: service must not be nil")
	}
	return &Handler{svc: svc}, nil
}

type sendRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	SenderID       string `json:"senderId"`
	RecipientID    string `json:"recipientId"`
	Content        string `json:"content"`
}

type sendResponse struct {
	ConversationID string `json:"conversationId"`
	SentAt         string `json:"sentAt"`
}

type messageJSON struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Content        string `json:"content"`
	SentAt         string `json:"sentAt"`
}

type messagesResponse struct {
	Messages   []messageJSON `json:"messages"`
	NextBefore string        `json:"nextBefore,omitempty"`
}

type conversationJSON struct {
	ConversationID string `json:"conversationId"`
	PeerID         string `json:"peerId"`
	LastMessageAt  string `json:"lastMessageAt"`
}

type conversationsResponse struct {
	Conversations []conversationJSON `json:"conversations"`
	NextBefore    string             `json:"nextBefore,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Handle serves one API Gateway proxy request. Failures are always rendered
// as JSON responses; the returned error is reserved for the Lambda runtime.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	start := time.Now()
	corrID := correlationID(req.Headers)
	route := req.HTTPMethod + " " + req.Resource
	log := slog.With("correlation_id", corrID, "route", route)

	status, body := h.dispatch(ctx, route, req)
	if status >= http.StatusInternalServerError {
		log.ErrorContext(ctx, "request failed", "status", status, "duration_ms", time.Since(start).Milliseconds())
	} else {
		log.InfoContext(ctx, "request served", "status", status, "duration_ms", time.Since(start).Milliseconds())
	}

	raw, err := json.Marshal(body)
	if err != nil {
		log.ErrorContext(ctx, "encode response", "err", err)
		status = http.StatusInternalServerError
		raw = []byte(`{"error":"` + string(usecase.ErrorInternal) + `"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(raw),
	}, nil
}

func (h *Handler) dispatch(ctx context.Context, route string, req events.APIGatewayProxyRequest) (int, any) {
	switch route {
	case routeSendMessage:
		var in sendRequest
		if err := json.Unmarshal([]byte(req.Body), &in); err != nil {
			return http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_body"}
		}
		out, err := h.svc.SendMessage(ctx, usecase.SendInput{
			ConversationID: in.ConversationID,
			SenderID:       in.SenderID,
			RecipientID:    in.RecipientID,
			Content:        in.Content,
		})
		if err != nil {
			return errorStatus(ctx, err)
		}
		return http.StatusCreated, sendResponse{
			ConversationID: out.ConversationID.String(),
			SentAt:         formatTime(out.SentAt),
		}

	case routeListMessages:
		limit, ok := queryLimit(req.QueryStringParameters)
		if !ok {
			return http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_limit"}
		}
		out, err := h.svc.ListMessages(ctx, usecase.ListMessagesInput{
			ConversationID: req.PathParameters["conversationId"],
			Before:         req.QueryStringParameters["before"],
			Limit:          limit,
		})
		if err != nil {
			return errorStatus(ctx, err)
		}
		resp := messagesResponse{Messages: make([]messageJSON, 0, len(out.Messages))}
		for _, m := range out.Messages {
			resp.Messages = append(resp.Messages, messageJSON{
				ConversationID: m.ConversationID.String(),
				SenderID:       m.SenderID.String(),
				Content:        m.Content,
				SentAt:         formatTime(m.SentAt),
			})
		}
		if out.NextBefore != nil {
			resp.NextBefore = formatTime(*out.NextBefore)
		}
		return http.StatusOK, resp

	case routeListConversations:
		limit, ok := queryLimit(req.QueryStringParameters)
		if !ok {
			return http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_limit"}
		}
		out, err := h.svc.ListConversations(ctx, usecase.ListConversationsInput{
			UserID: req.PathParameters["userId"],
			Before: req.QueryStringParameters["before"],
			Limit:  limit,
		})
		if err != nil {
			return errorStatus(ctx, err)
		}
		resp := conversationsResponse{Conversations: make([]conversationJSON, 0, len(out.Conversations))}
		for _, c := range out.Conversations {
			resp.Conversations = append(resp.Conversations, toConversationJSON(c))
		}
		if out.NextBefore != nil {
			resp.NextBefore = formatTime(*out.NextBefore)
		}
		return http.StatusOK, resp

	case routeGetConversation:
		out, err := h.svc.GetConversation(ctx, usecase.GetConversationInput{
			UserID:         req.PathParameters["userId"],
			ConversationID: req.PathParameters["conversationId"],
		})
		if err != nil {
			return errorStatus(ctx, err)
		}
		return http.StatusOK, toConversationJSON(out)

	default:
		return http.StatusNotFound, errorResponse{Error: string(usecase.ErrorNotFound), Reason: "unknown_route"}
	}
}

func errorStatus(ctx context.Context, err error) (int, errorResponse) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		slog.ErrorContext(ctx, "unexpected service error", "err", err)
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}
	}

	status := http.StatusInternalServerError
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		status = http.StatusBadRequest
	case usecase.ErrorNotFound:
		status = http.StatusNotFound
	case usecase.ErrorConflict:
		status = http.StatusConflict
	case usecase.ErrorUnavailable:
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "service error", "code", ucErr.Code, "reason", ucErr.Reason, "err", ucErr.Err)
	}
	return status, errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason}
}

func queryLimit(params map[string]string) (int, bool) {
	raw := strings.TrimSpace(params["limit"])
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return uuid.NewString()
}

func toConversationJSON(c domain.ConversationSummary) conversationJSON {
	return conversationJSON{
		ConversationID: c.ConversationID.String(),
		PeerID:         c.PeerID.String(),
		LastMessageAt:  formatTime(c.LastMessageAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
