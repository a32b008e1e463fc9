package views

// View es el conjunto cerrado de pantallas. El router conmuta sobre un solo
// valor; cualquier string fuera del conjunto cae a landing sin pánico.
type View string

const (
	ViewLanding            View = "landing"
	ViewLogin              View = "login"
	ViewRegister           View = "register"
	ViewTwoFactor          View = "two-factor"
	ViewCedula             View = "cedula-verification"
	ViewDashboard          View = "dashboard"
	ViewConsultation       View = "consultation"
	ViewHistory            View = "history"
	ViewConsultationDetail View = "consultation-detail"
	ViewMembership         View = "membership"
	ViewPaymentSuccess     View = "payment-success"
	ViewLabInterpretation  View = "lab-interpretation"
)

// Parse valida contra el conjunto cerrado.
func Parse(s string) (View, bool) {
	v := View(s)
	switch v {
	case ViewLanding, ViewLogin, ViewRegister, ViewTwoFactor, ViewCedula,
		ViewDashboard, ViewConsultation, ViewHistory, ViewConsultationDetail,
		ViewMembership, ViewPaymentSuccess, ViewLabInterpretation:
		return v, true
	}
	return ViewLanding, false
}

// RequiresAuth indica si la vista solo debe renderizar con sesión activa.
// El switch es exhaustivo a propósito: agregar una vista sin clasificarla
// la deja del lado seguro (requiere auth).
func (v View) RequiresAuth() bool {
	switch v {
	case ViewLanding, ViewLogin, ViewRegister, ViewTwoFactor, ViewCedula:
		return false
	case ViewDashboard, ViewConsultation, ViewHistory, ViewConsultationDetail,
		ViewMembership, ViewPaymentSuccess, ViewLabInterpretation:
		return true
	default:
		return true
	}
}
