package receipt

import (
	"fmt"
	"strings"

	"github.com/ibrahimkeyboad/receiptbot/internal/core/domain"
)

// Messages go straight to the customer's chat, so they are in Spanish and use chat markup

const (
	MsgMissingImage     = "No se recibió una URL de imagen"
	MsgMissingSender    = "No se recibió el número del remitente"
	MsgImageUnavailable = "Error al procesar la imagen. Intente con otra URL."
	MsgUnverified       = "⚠️ No se pudo verificar el comprobante. Intente nuevamente o contacte soporte."
)

const dateLayout = "02/01/2006 15:04"

func unverified() *Result {
	return &Result{Status: StatusUnverified, Message: MsgUnverified}
}

func fakeMessage(v domain.Verdict, supportPhone string) string {
	var b strings.Builder
	b.WriteString("🚨 *Alerta de comprobante falso*\n\n")
	fmt.Fprintf(&b, "⚠️ Se ha detectado que esta imagen podría estar editada o manipulada con una confianza del %d%%.\n", v.Confidence)
	if v.Reason != "" {
		fmt.Fprintf(&b, "📌 *Razón:* %s\n", v.Reason)
	}
	b.WriteString("\nSi crees que esto es un error, contacta con soporte.\n\n")
	fmt.Fprintf(&b, "👉 *Soporte:* %s 👈", supportPhone)
	return b.String()
}

func amountMessage(document string) string {
	return fmt.Sprintf("⚠️ No se pudo leer un monto válido en el comprobante %s. Envíe una imagen más clara.", document)
}

func beneficiaryMessage(beneficiary, supportPhone string) string {
	if beneficiary == "" {
		beneficiary = "no visible"
	}
	return fmt.Sprintf("❌ El beneficiario del pago (%s) no corresponde a nuestras cuentas autorizadas.\n\n"+
		"👉 *Soporte:* %s 👈", beneficiary, supportPhone)
}

func inProgressMessage(document string) string {
	return fmt.Sprintf("⏳ El comprobante %s ya se está procesando. Espere un momento.", document)
}

func duplicateMessage(document string, previous *domain.Receipt) string {
	if previous == nil {
		return fmt.Sprintf("⚠️ El comprobante %s ya fue registrado anteriormente.", document)
	}
	return fmt.Sprintf("⚠️ El comprobante %s ya fue registrado el %s por %s.",
		document, previous.CreatedAt.Format(dateLayout), previous.ContactPhone)
}

func registeredMessage(rec *domain.Receipt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Pago registrado exitosamente. Documento: %s.\n", rec.Document)
	fmt.Fprintf(&b, "💵 Valor: $%s", rec.Amount.StringFixed(2))
	if rec.Service != "" {
		fmt.Fprintf(&b, "\n📦 Servicio: %s", rec.Service)
	}
	return b.String()
}
