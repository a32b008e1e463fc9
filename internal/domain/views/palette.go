package views

import "vet-clinical-support/internal/domain/session"

// Shortcut es una entrada de la paleta de comandos (atajo global).
// La paleta solo propone navegaciones; nunca muta la vista por sí misma.
type Shortcut struct {
	Key    string
	Label  string
	Target View
}

// Shortcuts devuelve los atajos visibles para el estado de sesión dado.
func Shortcuts(snap session.Snapshot) []Shortcut {
	all := []Shortcut{
		{Key: "g d", Label: "Ir al dashboard", Target: ViewDashboard},
		{Key: "g c", Label: "Nueva consulta", Target: ViewConsultation},
		{Key: "g h", Label: "Historial de consultas", Target: ViewHistory},
		{Key: "g m", Label: "Membresía", Target: ViewMembership},
		{Key: "g l", Label: "Interpretación de laboratorio", Target: ViewLabInterpretation},
		{Key: "g i", Label: "Iniciar sesión", Target: ViewLogin},
		{Key: "g r", Label: "Registro", Target: ViewRegister},
	}

	out := make([]Shortcut, 0, len(all))
	for _, sc := range all {
		if sc.Target.RequiresAuth() && !snap.Authenticated {
			continue
		}
		if !sc.Target.RequiresAuth() && snap.Authenticated {
			// con sesión activa no tiene caso ofrecer login/registro
			if sc.Target == ViewLogin || sc.Target == ViewRegister {
				continue
			}
		}
		out = append(out, sc)
	}
	return out
}
