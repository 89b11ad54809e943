package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrMalformedOutput means the vision model answered with something that is not the expected JSON
var ErrMalformedOutput = errors.New("malformed model output")

// Receipt is a payment proof that passed verification and was stored
type Receipt struct {
	ID             uuid.UUID       `json:"id"`
	Document       string          `json:"document"`
	Amount         decimal.Decimal `json:"amount"`
	Sender         string          `json:"sender"`
	Beneficiary    string          `json:"beneficiary"`
	Bank           string          `json:"bank"`
	PaymentType    PaymentType     `json:"payment_type"`
	Service        string          `json:"service,omitempty"`
	PaidAt         time.Time       `json:"paid_at"`
	ContactPhone   string          `json:"contact_phone"`
	FakeConfidence int             `json:"fake_confidence"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Contact is the chat user who submitted at least one valid receipt
type Contact struct {
	Phone         string    `json:"phone"`
	LineID        string    `json:"line_id"`
	ReceiptsCount int       `json:"receipts_count"`
	LastSeenAt    time.Time `json:"last_seen_at"`
}

// ChatMessage is one entry of the conversation forwarded by the bot
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Verdict is the authenticity assessment returned by the vision model
type Verdict struct {
	Fake       bool
	Confidence int // 0..100, how sure the model is that the image is fake
	Reason     string
}

// Extraction holds the raw fields read from the receipt image.
// Values are kept as the model returned them and parsed later.
type Extraction struct {
	Document    string
	Amount      string
	Sender      string
	Beneficiary string
	Bank        string
	Type        string
}

// WebhookJob is a pending notification stored in the outbox
type WebhookJob struct {
	ID       uuid.UUID
	URL      string
	Payload  []byte
	Attempts int
}
