package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type PaymentType string

const (
	Deposit        PaymentType = "DEPOSIT"
	Transfer       PaymentType = "TRANSFER"
	UnknownPayment PaymentType = "UNKNOWN"
)

// UnknownSender is stored when the model cannot read who paid
const UnknownSender = "Desconocido"

// ParsePaymentType maps the label printed on the receipt ("Depósito", "Transferencia") to a PaymentType
func ParsePaymentType(label string) PaymentType {
	folded := Fold(label)
	switch {
	case strings.Contains(folded, "DEPOSIT"):
		return Deposit
	case strings.Contains(folded, "TRANSF"):
		return Transfer
	default:
		return UnknownPayment
	}
}

// documentLabel matches one leading label such as "No.", "Documento:", "N°" or
// "Número de". Words need a separator after them so "NOVA123" is kept.
var documentLabel = regexp.MustCompile(`^\s*(?:(?:NO|NRO|NUM|NUMERO|DOC|DOCUMENTO|COMPROBANTE|REF|REFERENCIA|TRANSACCION|OPERACION|ID)(?:\s*[.:#]\s*|\s+)|N\s*[°º]\s*|#\s*)(?:DE\s+)?`)

// NormalizeDocument cleans the reference number so the same receipt always yields the same key.
// Labels are stripped repeatedly: "Documento No. 123" and "123" give the same key.
func NormalizeDocument(raw string) string {
	doc := Fold(raw)
	for {
		stripped := documentLabel.ReplaceAllString(doc, "")
		if stripped == doc {
			break
		}
		doc = stripped
	}
	return strings.Join(strings.Fields(doc), "")
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2006-01-02",
	"02/01/2006",
}

// ParseTimestamp accepts the date formats the chat bot is known to send.
// Times without an offset are read in loc, the bot's local zone.
// It returns fallback when nothing matches.
func ParseTimestamp(raw string, loc *time.Location, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t
		}
	}
	return fallback
}

// Fold removes accents and upper-cases s: "Depósito" -> "DEPOSITO"
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(out)
}
