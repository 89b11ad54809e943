package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cast"

	"github.com/ibrahimkeyboad/receiptbot/internal/adapter/export"
	"github.com/ibrahimkeyboad/receiptbot/internal/adapter/storage"
	"github.com/ibrahimkeyboad/receiptbot/internal/core/domain"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

type ReceiptReader interface {
	List(ctx context.Context, f storage.ReceiptFilter) ([]domain.Receipt, error)
	FindByDocument(ctx context.Context, document string) (*domain.Receipt, error)
}

type ContactReader interface {
	Get(ctx context.Context, phone string) (*domain.Contact, error)
}

// AdminHandler serves the back-office queries over registered receipts
type AdminHandler struct {
	Receipts ReceiptReader
	Contacts ContactReader
}

func (h *AdminHandler) ListReceipts(c *fiber.Ctx) error {
	filter, err := parseFilter(c, defaultListLimit)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	receipts, err := h.Receipts.List(c.Context(), filter)
	if err != nil {
		slog.Error("Failed to list receipts", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch receipts"})
	}
	if receipts == nil {
		receipts = []domain.Receipt{}
	}

	return c.JSON(fiber.Map{
		"receipts": receipts,
		"count":    len(receipts),
	})
}

func (h *AdminHandler) GetReceipt(c *fiber.Ctx) error {
	rec, err := h.Receipts.FindByDocument(c.Context(), domain.NormalizeDocument(c.Params("document")))
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "Receipt not found"})
	}
	if err != nil {
		slog.Error("Failed to fetch receipt", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch receipt"})
	}
	return c.JSON(rec)
}

// ExportReceipts sends the filtered receipts as an xlsx download
func (h *AdminHandler) ExportReceipts(c *fiber.Ctx) error {
	filter, err := parseFilter(c, 0)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	receipts, err := h.Receipts.List(c.Context(), filter)
	if err != nil {
		slog.Error("Failed to list receipts for export", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch receipts"})
	}

	var buf bytes.Buffer
	if err := export.WriteReceipts(&buf, receipts); err != nil {
		slog.Error("Failed to build workbook", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not build export"})
	}

	slog.Info("📊 Receipts exported", "count", len(receipts))
	c.Attachment(fmt.Sprintf("comprobantes-%s.xlsx", time.Now().Format("20060102")))
	c.Set(fiber.HeaderContentType, export.ContentType)
	return c.Send(buf.Bytes())
}

func (h *AdminHandler) GetContact(c *fiber.Ctx) error {
	contact, err := h.Contacts.Get(c.Context(), c.Params("phone"))
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "Contact not found"})
	}
	if err != nil {
		slog.Error("Failed to fetch contact", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch contact"})
	}
	return c.JSON(contact)
}

// parseFilter reads ?from&to&phone&limit
func parseFilter(c *fiber.Ctx, defaultLimit int) (storage.ReceiptFilter, error) {
	f, err := DateRange(c.Query("from"), c.Query("to"))
	if err != nil {
		return f, err
	}
	f.Phone = c.Query("phone")

	f.Limit = defaultLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err := cast.ToIntE(raw)
		if err != nil || limit <= 0 {
			return f, fmt.Errorf("invalid limit %q", raw)
		}
		f.Limit = limit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	return f, nil
}

// DateRange builds a filter on paid_at. Empty bounds are open and a
// date-only "to" covers the whole day.
func DateRange(from, to string) (storage.ReceiptFilter, error) {
	var f storage.ReceiptFilter
	var err error
	if f.From, err = parseDate(from, false); err != nil {
		return f, fmt.Errorf("invalid from date: %w", err)
	}
	if f.To, err = parseDate(to, true); err != nil {
		return f, fmt.Errorf("invalid to date: %w", err)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, errors.New("to must not be before from")
	}
	return f, nil
}

func parseDate(raw string, endOfDay bool) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := cast.ToTimeE(raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay && len(raw) == len("2006-01-02") {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
