package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/receiptbot/internal/adapter/middleware"
	"github.com/ibrahimkeyboad/receiptbot/internal/core/domain"
	"github.com/ibrahimkeyboad/receiptbot/internal/core/receipt"
)

// Processor runs the verification pipeline for one submission
type Processor interface {
	Process(ctx context.Context, sub receipt.Submission) (*receipt.Result, error)
}

type ReceiptHandler struct {
	Service Processor
}

// ProcessRequest is the body the chat bot posts
type ProcessRequest struct {
	URLTempFile string               `json:"urlTempFile"`
	From        string               `json:"from"`
	FullDate    string               `json:"fullDate"`
	Line        string               `json:"line"`
	History     []domain.ChatMessage `json:"history"`
}

type ProcessResponse struct {
	Mensaje   string `json:"mensaje"`
	Estado    string `json:"estado"`
	Documento string `json:"documento,omitempty"`
}

// Process verifies the receipt image and answers with the message for the customer
func (h *ReceiptHandler) Process(c *fiber.Ctx) error {
	var req ProcessRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Warn("Invalid receipt body received", "error", err, "request_id", middleware.RequestID(c))
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"mensaje": "Cuerpo de la solicitud inválido"})
	}

	res, err := h.Service.Process(c.Context(), receipt.Submission{
		ImageURL: req.URLTempFile,
		From:     req.From,
		FullDate: req.FullDate,
		LineID:   req.Line,
		History:  req.History,
	})
	if err != nil {
		return writeProcessError(c, err)
	}

	resp := ProcessResponse{Mensaje: res.Message, Estado: string(res.Status)}
	if res.Receipt != nil {
		resp.Documento = res.Receipt.Document
	}
	return c.JSON(resp)
}

func writeProcessError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, receipt.ErrMissingImage):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"mensaje": receipt.MsgMissingImage})
	case errors.Is(err, receipt.ErrMissingSender):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"mensaje": receipt.MsgMissingSender})
	case errors.Is(err, receipt.ErrImageUnavailable):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"mensaje": receipt.MsgImageUnavailable})
	}

	slog.Error("❌ Receipt processing failed", "error", err, "request_id", middleware.RequestID(c))
	return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
