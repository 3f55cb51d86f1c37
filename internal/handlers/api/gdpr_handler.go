package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/wardenhq/warden/internal/gdpr"
)

type GDPRHandler struct {
	manager *gdpr.Manager
}

func NewGDPRHandler(manager *gdpr.Manager) *GDPRHandler {
	return &GDPRHandler{manager: manager}
}

type submitRequestBody struct {
	UserID             string         `json:"userId"`
	UserEmail          string         `json:"userEmail"`
	Right              string         `json:"right"`
	Description        string         `json:"description"`
	Metadata           map[string]any `json:"metadata"`
	VerificationMethod string         `json:"verificationMethod"`
}

type verifyRequestBody struct {
	Token     string          `json:"token"`
	Code      string          `json:"code"`
	Documents []gdpr.Document `json:"documents"`
}

func (h *GDPRHandler) PostRequest(ctx *fiber.Ctx) error {
	var body submitRequestBody
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Malformed request body"),
		)
	}
	if body.UserID == "" || body.UserEmail == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "userId and userEmail are required"),
		)
	}
	req, err := h.manager.Submit(ctx.Context(), gdpr.SubmitInput{
		UserID:      body.UserID,
		UserEmail:   body.UserEmail,
		Right:       gdpr.Right(body.Right),
		Description: body.Description,
		Metadata:    body.Metadata,
		Method:      gdpr.VerificationMethod(body.VerificationMethod),
	})
	if err != nil {
		return gdprError(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(req))
}

func (h *GDPRHandler) PostVerify(ctx *fiber.Ctx) error {
	var body verifyRequestBody
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Malformed request body"),
		)
	}
	result, err := h.manager.Verify(ctx.Context(), ctx.Params("id"), gdpr.Proof{
		Token:     body.Token,
		Code:      body.Code,
		Documents: body.Documents,
	})
	if err != nil {
		return gdprError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(result))
}

func (h *GDPRHandler) PostProcess(ctx *fiber.Ctx) error {
	result, err := h.manager.Process(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return gdprError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(result))
}

func (h *GDPRHandler) GetRequest(ctx *fiber.Ctx) error {
	req, err := h.manager.Get(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return gdprError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(req))
}

func (h *GDPRHandler) GetStatistics(ctx *fiber.Ctx) error {
	stats, err := h.manager.Statistics(ctx.Context())
	if err != nil {
		return gdprError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(stats))
}

func (h *GDPRHandler) GetReport(ctx *fiber.Ctx) error {
	report, err := h.manager.Report(ctx.Context())
	if err != nil {
		return gdprError(ctx, err)
	}
	ctx.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return ctx.Send(report)
}

func gdprError(ctx *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, gdpr.ErrRequestNotFound):
		return ctx.Status(fiber.StatusNotFound).JSON(
			NewErrorResponse(fiber.StatusNotFound, "Request not found"),
		)
	case errors.Is(err, gdpr.ErrAlreadyProcessed), errors.Is(err, gdpr.ErrNotVerified):
		return ctx.Status(fiber.StatusConflict).JSON(
			NewErrorResponse(fiber.StatusConflict, err.Error()),
		)
	case errors.Is(err, gdpr.ErrInvalidRight), errors.Is(err, gdpr.ErrInvalidMethod):
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, err.Error()),
		)
	case errors.Is(err, gdpr.ErrVerificationFailed),
		errors.Is(err, gdpr.ErrChallengeExpired),
		errors.Is(err, gdpr.ErrTooManyAttempts):
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(
			NewErrorResponse(fiber.StatusUnprocessableEntity, err.Error()),
		)
	default:
		slog.Error("gdpr request handling failed", "error", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(
			NewErrorResponse(fiber.StatusInternalServerError, "Internal server error"),
		)
	}
}
