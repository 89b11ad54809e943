// Package receipt verifies payment receipts sent through the chat bot and
// registers the ones that pass every check.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/ibrahimkeyboad/receiptbot/internal/core/domain"
	"github.com/ibrahimkeyboad/receiptbot/internal/core/rules"
)

var (
	ErrMissingImage     = errors.New("missing image url")
	ErrMissingSender    = errors.New("missing sender")
	ErrImageUnavailable = errors.New("image could not be downloaded")
)

type Status string

const (
	StatusRegistered Status = "registrado"
	StatusDuplicate  Status = "duplicado"
	StatusFake       Status = "falso"
	StatusRejected   Status = "rechazado"
	StatusUnverified Status = "no_verificado"
)

// Vision reads receipt images
type Vision interface {
	Detect(ctx context.Context, imageDataURL string) (domain.Verdict, error)
	Extract(ctx context.Context, imageDataURL string) (domain.Extraction, error)
}

type ImageFetcher interface {
	FetchDataURL(ctx context.Context, url string) (string, error)
}

type ReceiptStore interface {
	Insert(ctx context.Context, rec *domain.Receipt) (bool, error)
	FindByDocument(ctx context.Context, document string) (*domain.Receipt, error)
}

type ContactStore interface {
	Upsert(ctx context.Context, phone, lineID string, seenAt time.Time) error
}

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type Outbox interface {
	Enqueue(ctx context.Context, url string, payload []byte) error
}

// Submission is what the chat bot sends for one receipt image
type Submission struct {
	ImageURL string
	From     string
	FullDate string
	LineID   string
	History  []domain.ChatMessage
}

// Result is the outcome shown to the customer
type Result struct {
	Status  Status
	Message string
	Receipt *domain.Receipt
}

type Service struct {
	Vision   Vision
	Images   ImageFetcher
	Receipts ReceiptStore
	Contacts ContactStore
	Locker   Locker
	Outbox   Outbox // optional
	Rules    *rules.Rules

	WebhookURL    string
	DefaultLineID string
	Location      *time.Location // zone of the bot's timestamps; nil means time.Local
	Now           func() time.Time
}

// Process runs every check on the submission and stores the receipt when it passes.
// Returned errors are either input errors (ErrMissingImage, ErrMissingSender,
// ErrImageUnavailable) or downstream failures.
func (s *Service) Process(ctx context.Context, sub Submission) (*Result, error) {
	// 1. Validate input
	sub.ImageURL = strings.TrimSpace(sub.ImageURL)
	sub.From = strings.TrimSpace(sub.From)
	if sub.ImageURL == "" {
		return nil, ErrMissingImage
	}
	if sub.From == "" {
		return nil, ErrMissingSender
	}
	log := slog.With("from", sub.From)

	// 2. Download the image
	image, err := s.Images.FetchDataURL(ctx, sub.ImageURL)
	if err != nil {
		log.Warn("Image download failed", "url", sub.ImageURL, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrImageUnavailable, err)
	}

	// 3. Fake detection
	verdict, err := s.Vision.Detect(ctx, image)
	if errors.Is(err, domain.ErrMalformedOutput) {
		log.Warn("Fake detection answer could not be parsed", "error", err)
		return unverified(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("fake detection: %w", err)
	}
	log.Info("🔍 Fake detection done", "fake", verdict.Fake, "confidence", verdict.Confidence)

	if s.Rules.IsFake(verdict) {
		log.Warn("🚨 Receipt flagged as fake", "confidence", verdict.Confidence, "reason", verdict.Reason)
		return &Result{Status: StatusFake, Message: fakeMessage(verdict, s.Rules.SupportPhone)}, nil
	}

	// 4. Field extraction
	ex, err := s.Vision.Extract(ctx, image)
	if errors.Is(err, domain.ErrMalformedOutput) {
		log.Warn("Extraction answer could not be parsed", "error", err)
		return unverified(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("field extraction: %w", err)
	}

	document := domain.NormalizeDocument(ex.Document)
	if document == "" {
		log.Warn("No document number on receipt")
		return unverified(), nil
	}
	log = log.With("document", document)

	// 5. Business rules
	amount, err := domain.ParseAmount(ex.Amount)
	if err != nil {
		log.Warn("Amount rejected", "raw", ex.Amount, "error", err)
		return &Result{Status: StatusRejected, Message: amountMessage(document)}, nil
	}

	beneficiary, ok := s.Rules.MatchBeneficiary(ex.Beneficiary)
	if !ok {
		log.Warn("Beneficiary not allowed", "beneficiary", ex.Beneficiary)
		return &Result{Status: StatusRejected, Message: beneficiaryMessage(ex.Beneficiary, s.Rules.SupportPhone)}, nil
	}

	now := s.now()
	rec := &domain.Receipt{
		Document:       document,
		Amount:         amount,
		Sender:         ex.Sender,
		Beneficiary:    beneficiary,
		Bank:           ex.Bank,
		PaymentType:    domain.ParsePaymentType(ex.Type),
		Service:        s.Rules.MatchService(sub.History),
		PaidAt:         domain.ParseTimestamp(sub.FullDate, s.Location, now),
		ContactPhone:   sub.From,
		FakeConfidence: verdict.Confidence,
	}
	if rec.Sender == "" {
		rec.Sender = domain.UnknownSender
	}

	// 6. Dedup and store
	release, acquired, err := s.Locker.Acquire(ctx, "doc:"+document, s.Rules.LockTTL)
	if err != nil {
		// The unique constraint still protects us, so keep going without the lock
		log.Warn("Lock unavailable, relying on the database constraint", "error", err)
	} else if !acquired {
		log.Info("Same receipt is being processed by another request")
		return &Result{Status: StatusDuplicate, Message: inProgressMessage(document)}, nil
	} else {
		defer release()
	}

	inserted, err := s.Receipts.Insert(ctx, rec)
	if err != nil {
		return nil, err
	}
	if !inserted {
		previous, err := s.Receipts.FindByDocument(ctx, document)
		if err != nil {
			log.Warn("Duplicate receipt but the original could not be loaded", "error", err)
		}
		log.Info("♻️ Duplicate receipt")
		return &Result{Status: StatusDuplicate, Message: duplicateMessage(document, previous), Receipt: previous}, nil
	}
	log.Info("✅ Receipt registered", "id", rec.ID, "amount", rec.Amount.StringFixed(2), "service", rec.Service)

	// 7. Side effects: never fail the request once the receipt is stored
	lineID := sub.LineID
	if lineID == "" {
		lineID = s.DefaultLineID
	}
	if err := s.Contacts.Upsert(ctx, sub.From, lineID, now); err != nil {
		log.Error("❌ Contact upsert failed", "error", err)
	}
	s.notify(ctx, log, rec)

	return &Result{Status: StatusRegistered, Message: registeredMessage(rec), Receipt: rec}, nil
}

func (s *Service) notify(ctx context.Context, log *slog.Logger, rec *domain.Receipt) {
	if s.Outbox == nil || s.WebhookURL == "" {
		return
	}
	payload, err := sonic.Marshal(map[string]any{
		"event": "payment.registered",
		"data":  rec,
	})
	if err != nil {
		log.Error("❌ Failed to marshal webhook payload", "error", err)
		return
	}
	if err := s.Outbox.Enqueue(ctx, s.WebhookURL, payload); err != nil {
		log.Error("❌ Webhook Queue Error", "error", err)
		return
	}
	log.Info("Webhook queued for Worker")
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
