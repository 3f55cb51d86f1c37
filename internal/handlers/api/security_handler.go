package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/wardenhq/warden/internal/ddos"
	"github.com/wardenhq/warden/internal/privacy"
	"github.com/wardenhq/warden/internal/security"
	"github.com/wardenhq/warden/params"
)

type SecurityHandler struct {
	history *security.History
	guard   *ddos.Guard
	logger  *privacy.Logger
}

func NewSecurityHandler(history *security.History, guard *ddos.Guard, logger *privacy.Logger) *SecurityHandler {
	return &SecurityHandler{
		history: history,
		guard:   guard,
		logger:  logger,
	}
}

// GetEvents returns the recent security event ring, newest last. Raw IPs
// never serialize; only hashed forms reach the log store.
func (h *SecurityHandler) GetEvents(ctx *fiber.Ctx) error {
	return ctx.JSON(NewDataResponse(h.history.Recent()))
}

type securityStatistics struct {
	TotalEvents int64              `json:"totalEvents"`
	Blocked     int64              `json:"blocked"`
	ByType      map[string]int64   `json:"byType"`
	BySeverity  map[string]int64   `json:"bySeverity"`
	Analytics   *privacy.Analytics `json:"analytics"`
}

func (h *SecurityHandler) GetStatistics(ctx *fiber.Ctx) error {
	events := h.history.Recent()
	stats := securityStatistics{
		TotalEvents: int64(len(events)),
		ByType:      make(map[string]int64),
		BySeverity:  make(map[string]int64),
	}
	for _, ev := range events {
		stats.ByType[string(ev.Type)]++
		stats.BySeverity[string(ev.Severity)]++
		if ev.Blocked {
			stats.Blocked++
		}
	}
	analytics, err := h.logger.Analytics(ctx.Context())
	if err != nil {
		slog.Error("log analytics failed", "error", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(
			NewErrorResponse(fiber.StatusInternalServerError, "Internal server error"),
		)
	}
	stats.Analytics = analytics
	return ctx.JSON(NewDataResponse(stats))
}

func (h *SecurityHandler) PostUnblock(ctx *fiber.Ctx) error {
	ip := ctx.Params("ip")
	if err := h.guard.Unblock(ctx.Context(), ip); err != nil {
		slog.Error("unblock failed", "error", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(
			NewErrorResponse(fiber.StatusInternalServerError, "Internal server error"),
		)
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"unblocked": true}))
}

func (h *SecurityHandler) GetLogsExport(ctx *fiber.Ctx) error {
	format := ctx.Query("format", params.ComplianceExportFormat)
	export, err := h.logger.Export(ctx.Context(), format)
	if errors.Is(err, privacy.ErrUnsupportedExportFormat) {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, err.Error()),
		)
	}
	if err != nil {
		slog.Error("log export failed", "error", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(
			NewErrorResponse(fiber.StatusInternalServerError, "Internal server error"),
		)
	}
	ctx.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	ctx.Set(fiber.HeaderContentDisposition, `attachment; filename="logs-export.json"`)
	return ctx.Send(export)
}
