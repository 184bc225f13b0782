package controller

import (
	"errors"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/pkg/serverutils"
	"ai-assistant-be/internal/service"
	internalWS "ai-assistant-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type IAssistantController interface {
	RegisterRoutes(r fiber.Router)
	SubmitMessage(ctx *fiber.Ctx) error
	CancelSession(ctx *fiber.Ctx) error
	GetContext(ctx *fiber.Ctx) error
	GetSessionAudio(ctx *fiber.Ctx) error
	Stream(ctx *fiber.Ctx) error
	ListConversations(ctx *fiber.Ctx) error
	GetConversationMessages(ctx *fiber.Ctx) error
}

type assistantController struct {
	service       service.IAssistantService
	conversations service.IConversationService
	hub           *internalWS.Hub
	jwtSecret     string
	logger        logger.ILogger
}

// NewAssistantController wires the routes. conversations may be nil when no
// database is configured; hub may be nil when streaming is disabled.
func NewAssistantController(svc service.IAssistantService, conversations service.IConversationService, hub *internalWS.Hub, jwtSecret string, log logger.ILogger) IAssistantController {
	return &assistantController{
		service:       svc,
		conversations: conversations,
		hub:           hub,
		jwtSecret:     jwtSecret,
		logger:        log,
	}
}

func (c *assistantController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/assistant/v1")

	contexts := h.Group("/contexts/:contextId", serverutils.OptionalJwtMiddleware(c.jwtSecret))
	contexts.Get("/", c.GetContext)
	contexts.Post("/messages", c.SubmitMessage)
	contexts.Delete("/sessions/:sessionId", c.CancelSession)
	contexts.Get("/sessions/:sessionId/audio", c.GetSessionAudio)
	contexts.Get("/stream", c.Stream)

	h.Get("/conversations", serverutils.JwtMiddleware(c.jwtSecret), c.ListConversations)
	h.Get("/conversations/:conversationId/messages", serverutils.JwtMiddleware(c.jwtSecret), c.GetConversationMessages)
}

// httpError maps service errors onto status codes; anything else falls
// through to the error handler middleware.
func httpError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidContext):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrNotOwner):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrContextNotFound), errors.Is(err, service.ErrConversationNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSessionPending):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}

func (c *assistantController) SubmitMessage(ctx *fiber.Ctx) error {
	var req dto.SubmitMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	contextID := ctx.Params("contextId")
	sess, err := c.service.Submit(ctx.UserContext(), contextID, req.Text)
	if err != nil {
		return httpError(err)
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Message accepted", dto.SubmitMessageResponse{
		ContextID: contextID,
		SessionID: sess.ID,
		State:     sess.State(),
		StartedAt: sess.StartedAt,
	}))
}

func (c *assistantController) CancelSession(ctx *fiber.Ctx) error {
	if err := c.service.Cancel(ctx.UserContext(), ctx.Params("contextId"), ctx.Params("sessionId")); err != nil {
		return httpError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Session cancelled", nil))
}

func (c *assistantController) GetContext(ctx *fiber.Ctx) error {
	snap, err := c.service.Snapshot(ctx.UserContext(), ctx.Params("contextId"))
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Conversation context", snap))
}

// GetSessionAudio serves the podcast audio, which the JSON views omit.
func (c *assistantController) GetSessionAudio(ctx *fiber.Ctx) error {
	res, err := c.service.SessionResult(ctx.UserContext(), ctx.Params("contextId"), ctx.Params("sessionId"))
	if err != nil {
		return httpError(err)
	}
	if res.Media == nil || res.Media.Audio == nil || len(res.Media.Audio.Data) == 0 {
		return fiber.NewError(fiber.StatusNotFound, "Session produced no audio")
	}

	audio := res.Media.Audio
	ctx.Attachment(audio.Filename)
	ctx.Set(fiber.HeaderContentType, audio.ContentType)
	return ctx.Send(audio.Data)
}

func (c *assistantController) Stream(ctx *fiber.Ctx) error {
	if c.hub == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "Streaming is disabled")
	}
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}

	contextID := ctx.Params("contextId")
	if err := c.service.Authorize(ctx.UserContext(), contextID); err != nil {
		return httpError(err)
	}

	return websocket.New(func(conn *websocket.Conn) {
		c.logger.Info("AssistantController", "Starting stream", map[string]interface{}{"context_id": contextID})
		internalWS.ServeWs(c.hub, conn, contextID)
		c.logger.Info("AssistantController", "Stream ended", map[string]interface{}{"context_id": contextID})
	})(ctx)
}

func (c *assistantController) ListConversations(ctx *fiber.Ctx) error {
	if c.conversations == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "Conversation storage is disabled")
	}
	userID, _ := serverutils.UserIDFromContext(ctx.UserContext())

	convs, err := c.conversations.ListConversations(ctx.UserContext(), userID, ctx.QueryInt("limit", 20))
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Conversations", convs))
}

func (c *assistantController) GetConversationMessages(ctx *fiber.Ctx) error {
	if c.conversations == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "Conversation storage is disabled")
	}
	userID, _ := serverutils.UserIDFromContext(ctx.UserContext())

	msgs, err := c.conversations.Messages(ctx.UserContext(), userID, ctx.Params("conversationId"))
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Conversation messages", msgs))
}
