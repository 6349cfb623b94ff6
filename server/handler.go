package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/uzsupport/murojaat/ai"
	"github.com/uzsupport/murojaat/routing"
	"github.com/uzsupport/murojaat/store"
)

// routeRequest is the inbound shape from the transport collaborator.
type routeRequest struct {
	MessageUUID string `json:"message_uuid"`
	User        struct {
		UUID           string  `json:"uuid"`
		FullName       string  `json:"full_name"`
		TelegramUserID int64   `json:"telegram_user_id"`
		Email          *string `json:"email"`
	} `json:"user"`
	Message struct {
		Text   string `json:"text"`
		SentAt string `json:"sent_at"`
	} `json:"message"`
	Settings struct {
		Model       string  `json:"model"`
		Temperature float32 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
	} `json:"settings"`
}

// routeResponse carries exactly one populated outcome.
type routeResponse struct {
	Routed       *routedOutcome `json:"routed,omitempty"`
	Blocked      *reasonOutcome `json:"blocked,omitempty"`
	ManualReview *reasonOutcome `json:"manual_review,omitempty"`
}

type routedOutcome struct {
	DepartmentID int32 `json:"department_id"`
}

type reasonOutcome struct {
	Reason string `json:"reason"`
}

func (s *Server) routeMessage(c echo.Context) error {
	var req routeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}
	if req.MessageUUID == "" || req.User.UUID == "" || req.Message.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message_uuid, user.uuid and message.text are required")
	}

	sentAt := time.Now()
	if req.Message.SentAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.Message.SentAt)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "message.sent_at must be ISO-8601").SetInternal(err)
		}
		sentAt = parsed
	}

	ctx := c.Request().Context()

	if _, err := s.store.UpsertUser(ctx, &store.UpsertUser{
		UID:            req.User.UUID,
		FullName:       req.User.FullName,
		TelegramUserID: req.User.TelegramUserID,
		Email:          req.User.Email,
	}); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to upsert user").SetInternal(err)
	}

	session, err := s.findOrCreateSession(c, req.User.UUID)
	if err != nil {
		return err
	}

	message, err := s.store.UpsertMessage(ctx, &store.Message{
		UID:        req.MessageUUID,
		SessionUID: session.UID,
		UserUID:    req.User.UUID,
		Text:       req.Message.Text,
		SentAt:     sentAt,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to upsert message").SetInternal(err)
	}

	var opts *ai.ChatOptions
	if req.Settings.Model != "" || req.Settings.Temperature > 0 || req.Settings.MaxTokens > 0 {
		opts = &ai.ChatOptions{
			Model:       req.Settings.Model,
			Temperature: req.Settings.Temperature,
			MaxTokens:   req.Settings.MaxTokens,
		}
	}

	result, err := s.router.Route(ctx, session, message, opts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "routing pipeline unavailable").SetInternal(err)
	}

	return c.JSON(http.StatusOK, toRouteResponse(result))
}

func (s *Server) findOrCreateSession(c echo.Context, userUID string) (*store.Session, error) {
	ctx := c.Request().Context()

	session, err := s.store.FindSessionByUserUID(ctx, userUID)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to find session").SetInternal(err)
	}
	if session != nil {
		return session, nil
	}

	session, err = s.store.CreateSession(ctx, &store.Session{
		UID:     uuid.NewString(),
		UserUID: userUID,
	})
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to create session").SetInternal(err)
	}
	return session, nil
}

func toRouteResponse(result *routing.Result) *routeResponse {
	switch result.State {
	case routing.StateRouted, routing.StateRoutedDirect:
		return &routeResponse{Routed: &routedOutcome{DepartmentID: *result.DepartmentID}}
	case routing.StateBlocked:
		return &routeResponse{Blocked: &reasonOutcome{Reason: result.Reason}}
	default:
		// MANUAL_REVIEW and PIPELINE_ERROR both surface as manual review;
		// the audit record keeps them distinguishable.
		reason := result.Reason
		if reason == "" {
			reason = string(result.State)
		}
		return &routeResponse{ManualReview: &reasonOutcome{Reason: reason}}
	}
}
