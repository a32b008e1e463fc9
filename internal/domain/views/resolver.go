package views

import (
	"net/url"
	"strings"

	"vet-clinical-support/internal/domain/session"
)

// Resolution es el resultado de resolver una navegación.
// Consumed lista los query params de deep link que deben quitarse de la
// URL para que un refresh no los re-dispare.
type Resolution struct {
	View            View
	Consumed        []string
	PendingCheckout string
}

// Resolve decide la vista a partir del snapshot de sesión, la vista actual
// y los query params. Es pura: el handler aplica los efectos (persistir la
// vista, redirigir con la URL limpia).
//
// Reglas, en orden:
//  1. ?session_id= (retorno de pago) se consume una sola vez. Con sesión
//     activa va a payment-success; sin sesión va a login, nunca a
//     payment-success.
//  2. ?view= (navegación directa) se consume; valores fuera del conjunto
//     cerrado se ignoran.
//  3. Sin perfil y sin carga en curso, cualquier vista autenticada se
//     fuerza a landing. Esta regla pisa cualquier navegación pendiente.
func Resolve(snap session.Snapshot, current View, q url.Values) Resolution {
	res := Resolution{View: current}
	if res.View == "" {
		if snap.Authenticated {
			res.View = ViewDashboard
		} else {
			res.View = ViewLanding
		}
	}

	if sid := strings.TrimSpace(q.Get("session_id")); sid != "" {
		res.Consumed = append(res.Consumed, "session_id")
		if snap.Authenticated {
			res.View = ViewPaymentSuccess
			res.PendingCheckout = sid
		} else {
			res.View = ViewLogin
		}
	} else if raw := strings.TrimSpace(q.Get("view")); raw != "" {
		res.Consumed = append(res.Consumed, "view")
		if v, ok := Parse(raw); ok {
			res.View = v
		}
	}

	// Regla de redirección: manda sobre todo lo anterior.
	if !snap.Authenticated && !snap.Loading && res.View.RequiresAuth() {
		res.View = ViewLanding
	}

	return res
}

// Strip devuelve la query sin los params consumidos.
func Strip(q url.Values, consumed []string) url.Values {
	out := url.Values{}
	for k, vs := range q {
		skip := false
		for _, c := range consumed {
			if k == c {
				skip = true
				break
			}
		}
		if !skip {
			out[k] = vs
		}
	}
	return out
}
