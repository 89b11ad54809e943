package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ibrahimkeyboad/receiptbot/internal/adapter/export"
	"github.com/ibrahimkeyboad/receiptbot/internal/adapter/storage"
	"github.com/ibrahimkeyboad/receiptbot/internal/core/domain"
	"github.com/ibrahimkeyboad/receiptbot/internal/core/receipt"
)

type fakeProcessor struct {
	got receipt.Submission
	res *receipt.Result
	err error
}

func (f *fakeProcessor) Process(_ context.Context, sub receipt.Submission) (*receipt.Result, error) {
	f.got = sub
	return f.res, f.err
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func newReceiptApp(p Processor) *fiber.App {
	h := &ReceiptHandler{Service: p}
	app := fiber.New()
	app.Post("/procesar", h.Process)
	return app
}

func TestProcessSuccess(t *testing.T) {
	p := &fakeProcessor{res: &receipt.Result{
		Status:  receipt.StatusRegistered,
		Message: "✅ Pago registrado exitosamente. Documento: 123.",
		Receipt: &domain.Receipt{Document: "123"},
	}}
	app := newReceiptApp(p)

	status, body := postJSON(t, app, "/procesar", `{
		"urlTempFile": "https://files/x.jpg",
		"from": "593980000001",
		"fullDate": "2024-06-01 10:00:00",
		"line": "ventas",
		"history": [{"role": "user", "content": "pago internet"}]
	}`)

	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "registrado", body["estado"])
	require.Equal(t, "123", body["documento"])
	require.Contains(t, body["mensaje"], "Pago registrado")

	require.Equal(t, "https://files/x.jpg", p.got.ImageURL)
	require.Equal(t, "ventas", p.got.LineID)
	require.Equal(t, []domain.ChatMessage{{Role: "user", Content: "pago internet"}}, p.got.History)
}

func TestProcessWithoutReceipt(t *testing.T) {
	app := newReceiptApp(&fakeProcessor{res: &receipt.Result{Status: receipt.StatusUnverified, Message: receipt.MsgUnverified}})

	status, body := postJSON(t, app, "/procesar", `{"urlTempFile":"u","from":"f"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, receipt.MsgUnverified, body["mensaje"])
	require.NotContains(t, body, "documento")
}

func TestProcessErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKey    string
		wantValue  string
	}{
		{"missing image", receipt.ErrMissingImage, http.StatusBadRequest, "mensaje", receipt.MsgMissingImage},
		{"missing sender", receipt.ErrMissingSender, http.StatusBadRequest, "mensaje", receipt.MsgMissingSender},
		{"image download", errors.Join(receipt.ErrImageUnavailable, errors.New("404")), http.StatusBadRequest, "mensaje", receipt.MsgImageUnavailable},
		{"downstream", errors.New("failed to insert receipt: conn closed"), http.StatusInternalServerError, "error", "failed to insert receipt: conn closed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newReceiptApp(&fakeProcessor{err: tt.err})
			status, body := postJSON(t, app, "/procesar", `{}`)
			require.Equal(t, tt.wantStatus, status)
			require.Equal(t, tt.wantValue, body[tt.wantKey])
		})
	}
}

func TestProcessInvalidBody(t *testing.T) {
	app := newReceiptApp(&fakeProcessor{})
	status, body := postJSON(t, app, "/procesar", `{not json`)
	require.Equal(t, http.StatusBadRequest, status)
	require.NotEmpty(t, body["mensaje"])
}

type fakeReceipts struct {
	receipts []domain.Receipt
	filter   storage.ReceiptFilter
	err      error
}

func (f *fakeReceipts) List(_ context.Context, filter storage.ReceiptFilter) ([]domain.Receipt, error) {
	f.filter = filter
	return f.receipts, f.err
}

func (f *fakeReceipts) FindByDocument(_ context.Context, document string) (*domain.Receipt, error) {
	for i := range f.receipts {
		if f.receipts[i].Document == document {
			return &f.receipts[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

type fakeContacts map[string]domain.Contact

func (f fakeContacts) Get(_ context.Context, phone string) (*domain.Contact, error) {
	c, ok := f[phone]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

func newAdminApp(receipts *fakeReceipts) *fiber.App {
	h := &AdminHandler{
		Receipts: receipts,
		Contacts: fakeContacts{"593980000001": {Phone: "593980000001", LineID: "principal", ReceiptsCount: 2}},
	}
	app := fiber.New()
	app.Get("/v1/receipts", h.ListReceipts)
	app.Get("/v1/receipts/export", h.ExportReceipts)
	app.Get("/v1/receipts/:document", h.GetReceipt)
	app.Get("/v1/contacts/:phone", h.GetContact)
	return app
}

func get(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	return resp
}

func sampleReceipts() []domain.Receipt {
	return []domain.Receipt{
		{Document: "0012345", Amount: decimal.RequireFromString("25.50"), ContactPhone: "593980000001"},
		{Document: "0099", Amount: decimal.NewFromInt(7)},
	}
}

func TestListReceipts(t *testing.T) {
	store := &fakeReceipts{receipts: sampleReceipts()}
	app := newAdminApp(store)

	resp := get(t, app, "/v1/receipts?from=2024-06-01&to=2024-06-30&phone=593980000001&limit=5000")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Receipts []domain.Receipt `json:"receipts"`
		Count    int              `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 2, body.Count)
	require.True(t, body.Receipts[0].Amount.Equal(decimal.RequireFromString("25.5")))

	require.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), store.filter.From)
	require.Equal(t, time.Date(2024, 6, 30, 23, 59, 59, 999999999, time.UTC), store.filter.To)
	require.Equal(t, "593980000001", store.filter.Phone)
	require.Equal(t, maxListLimit, store.filter.Limit)
}

func TestListReceiptsBadQuery(t *testing.T) {
	app := newAdminApp(&fakeReceipts{})

	for _, q := range []string{"from=ayer", "limit=-1", "from=2024-06-10&to=2024-06-01"} {
		resp := get(t, app, "/v1/receipts?"+q)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestListReceiptsStoreError(t *testing.T) {
	app := newAdminApp(&fakeReceipts{err: errors.New("db down")})
	resp := get(t, app, "/v1/receipts")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestGetReceiptAndContact(t *testing.T) {
	app := newAdminApp(&fakeReceipts{receipts: sampleReceipts()})

	require.Equal(t, http.StatusOK, get(t, app, "/v1/receipts/0012345").StatusCode)
	require.Equal(t, http.StatusNotFound, get(t, app, "/v1/receipts/404").StatusCode)

	resp := get(t, app, "/v1/contacts/593980000001")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var contact domain.Contact
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&contact))
	require.Equal(t, 2, contact.ReceiptsCount)

	require.Equal(t, http.StatusNotFound, get(t, app, "/v1/contacts/000").StatusCode)
}

func TestExportReceipts(t *testing.T) {
	store := &fakeReceipts{receipts: sampleReceipts()}
	app := newAdminApp(store)

	resp := get(t, app, "/v1/receipts/export?from=2024-06-01")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, export.ContentType, resp.Header.Get("Content-Type"))
	require.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")
	require.Zero(t, store.filter.Limit, "exports are not capped")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealth(t *testing.T) {
	app := fiber.New()
	app.Get("/ok", (&HealthHandler{DB: fakePinger{}}).Check)
	app.Get("/down", (&HealthHandler{DB: fakePinger{err: errors.New("refused")}}).Check)

	require.Equal(t, http.StatusOK, get(t, app, "/ok").StatusCode)
	require.Equal(t, http.StatusServiceUnavailable, get(t, app, "/down").StatusCode)
}
