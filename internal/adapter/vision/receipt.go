package vision

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/ibrahimkeyboad/receiptbot/internal/core/domain"
)

const (
	detectMaxTokens  = 100
	extractMaxTokens = 300
)

const detectSystem = "Eres un experto en autenticación de comprobantes de pago. Evalúa si esta imagen es un comprobante original o si ha sido editado."

const detectPrompt = `Aquí tienes ejemplos de comprobantes reales:

**Depósito impreso:**
- Texto impreso con impresora térmica, sin colores
- Puede tener marcas de agua o sellos
- Texto ligeramente borroso o desalineado
- Sección 'Documento' con un número de comprobante claro

**Transferencia digital:**
- Captura de pantalla o PDF con texto perfectamente alineado
- Puede tener colores y logotipos
- Número visible en 'Número de comprobante' o 'ID de transacción'

**Comprobante falso:**
- Texto editado digitalmente
- Fuentes o tamaños de letra inconsistentes
- Números o datos desalineados
- Modificación evidente del monto

Analiza la imagen y responde solo con un JSON:
{
  "es_falso": "true o false",
  "confianza": "número entre 0 y 100 que indica qué tan seguro estás de que es falso",
  "razon": "por qué se considera falso, si lo es"
}`

const extractSystem = "Eres un asistente experto en extraer información de comprobantes de pago. Devuelve solo un JSON con los datos requeridos, sin texto adicional."

const extractPrompt = `Extrae la siguiente información del comprobante de pago en la imagen y devuélvela en formato JSON:
{
  "documento": "número exacto del comprobante o transacción, sin palabras adicionales",
  "valor": "monto del pago en formato numérico con dos decimales",
  "remitente": "nombre de la persona que realizó el pago",
  "beneficiario": "nombre de la persona o empresa que recibe el pago",
  "banco": "nombre del banco que emitió el comprobante",
  "tipo": "'Depósito' o 'Transferencia' según el comprobante"
}
Si un dato no es visible, deja el campo vacío.`

// Detect asks the model whether the receipt image was edited
func (c *Client) Detect(ctx context.Context, imageDataURL string) (domain.Verdict, error) {
	content, err := c.complete(ctx, detectSystem, detectPrompt, imageDataURL, detectMaxTokens)
	if err != nil {
		return domain.Verdict{}, err
	}
	return parseVerdict(content)
}

// Extract reads the payment fields from the receipt image
func (c *Client) Extract(ctx context.Context, imageDataURL string) (domain.Extraction, error) {
	content, err := c.complete(ctx, extractSystem, extractPrompt, imageDataURL, extractMaxTokens)
	if err != nil {
		return domain.Extraction{}, err
	}
	return parseExtraction(content)
}

func parseVerdict(content string) (domain.Verdict, error) {
	obj, err := decodeObject(content)
	if err != nil {
		return domain.Verdict{}, err
	}

	var v domain.Verdict
	if raw, ok := obj["es_falso"]; ok && raw != nil {
		if v.Fake, err = cast.ToBoolE(raw); err != nil {
			return domain.Verdict{}, fmt.Errorf("%w: es_falso=%v", ErrMalformed, raw)
		}
	}
	if raw, ok := obj["confianza"]; ok && raw != nil {
		if s, isString := raw.(string); isString {
			raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		}
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return domain.Verdict{}, fmt.Errorf("%w: confianza=%v", ErrMalformed, raw)
		}
		v.Confidence = clampPercent(int(math.Round(f)))
	}
	v.Reason = strings.TrimSpace(cast.ToString(obj["razon"]))
	return v, nil
}

func parseExtraction(content string) (domain.Extraction, error) {
	obj, err := decodeObject(content)
	if err != nil {
		return domain.Extraction{}, err
	}

	field := func(key string) string {
		return strings.TrimSpace(cast.ToString(obj[key]))
	}
	return domain.Extraction{
		Document:    field("documento"),
		Amount:      field("valor"),
		Sender:      field("remitente"),
		Beneficiary: field("beneficiario"),
		Bank:        field("banco"),
		Type:        field("tipo"),
	}, nil
}

func clampPercent(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
