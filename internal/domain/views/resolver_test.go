package views

import (
	"net/url"
	"testing"

	"vet-clinical-support/internal/domain/session"
	"vet-clinical-support/internal/ports/clinical"
)

func authedSnap() session.Snapshot {
	return session.Snapshot{
		Authenticated: true,
		Profile:       &clinical.VeterinarianProfile{ID: "vet-1"},
	}
}

func anonSnap() session.Snapshot {
	return session.Snapshot{}
}

func TestResolve_SessionIDDeepLink_Authenticated(t *testing.T) {
	q := url.Values{"session_id": {"cs_123"}}

	res := Resolve(authedSnap(), ViewDashboard, q)
	if res.View != ViewPaymentSuccess {
		t.Fatalf("expected payment-success, got %s", res.View)
	}
	if res.PendingCheckout != "cs_123" {
		t.Fatalf("expected pending checkout captured, got %q", res.PendingCheckout)
	}
	if len(res.Consumed) != 1 || res.Consumed[0] != "session_id" {
		t.Fatalf("session_id must be consumed, got %v", res.Consumed)
	}
}

func TestResolve_SessionIDDeepLink_Unauthenticated(t *testing.T) {
	q := url.Values{"session_id": {"cs_123"}}

	res := Resolve(anonSnap(), "", q)
	if res.View != ViewLogin {
		t.Fatalf("expected login, got %s", res.View)
	}
	if res.PendingCheckout != "" {
		t.Fatal("anonymous deep link must not capture a checkout")
	}
	// El parámetro igual se consume: un refresh no debe re-dispararlo.
	if len(res.Consumed) != 1 || res.Consumed[0] != "session_id" {
		t.Fatalf("session_id must still be consumed, got %v", res.Consumed)
	}
}

func TestResolve_ViewParamOutsideClosedSetIsIgnored(t *testing.T) {
	q := url.Values{"view": {"admin-panel"}}

	res := Resolve(authedSnap(), ViewDashboard, q)
	if res.View != ViewDashboard {
		t.Fatalf("unknown view must keep current, got %s", res.View)
	}
	if len(res.Consumed) != 1 {
		t.Fatal("even an invalid view param is consumed")
	}
}

func TestResolve_AuthRuleOverridesNavigation(t *testing.T) {
	q := url.Values{"view": {string(ViewHistory)}}

	res := Resolve(anonSnap(), "", q)
	if res.View != ViewLanding {
		t.Fatalf("anonymous navigation to authed view must land, got %s", res.View)
	}
}

func TestResolve_LoadingSuppressesAuthRedirect(t *testing.T) {
	snap := session.Snapshot{Loading: true}

	res := Resolve(snap, ViewDashboard, url.Values{})
	if res.View != ViewDashboard {
		t.Fatalf("loading session must not bounce to landing, got %s", res.View)
	}
}

func TestResolve_DefaultsByAuthState(t *testing.T) {
	if res := Resolve(authedSnap(), "", url.Values{}); res.View != ViewDashboard {
		t.Fatalf("authenticated default must be dashboard, got %s", res.View)
	}
	if res := Resolve(anonSnap(), "", url.Values{}); res.View != ViewLanding {
		t.Fatalf("anonymous default must be landing, got %s", res.View)
	}
}

func TestStrip_RemovesOnlyConsumedParams(t *testing.T) {
	q := url.Values{"session_id": {"cs_1"}, "utm_source": {"mail"}}

	out := Strip(q, []string{"session_id"})
	if out.Get("session_id") != "" {
		t.Fatal("consumed param must be stripped")
	}
	if out.Get("utm_source") != "mail" {
		t.Fatal("unrelated params must survive")
	}
}

func TestParse_ClosedSet(t *testing.T) {
	if _, ok := Parse("dashboard"); !ok {
		t.Fatal("dashboard is a known view")
	}
	if v, ok := Parse("definitely-not-a-view"); ok || v != ViewLanding {
		t.Fatalf("unknown view must fall back to landing, got %s ok=%v", v, ok)
	}
}

func TestRequiresAuth_PublicViews(t *testing.T) {
	public := []View{ViewLanding, ViewLogin, ViewRegister, ViewTwoFactor, ViewCedula}
	for _, v := range public {
		if v.RequiresAuth() {
			t.Fatalf("%s must be public", v)
		}
	}
	if !ViewDashboard.RequiresAuth() || !ViewPaymentSuccess.RequiresAuth() {
		t.Fatal("dashboard and payment-success require auth")
	}
}

func TestShortcuts_FilteredByAuth(t *testing.T) {
	for _, sc := range Shortcuts(anonSnap()) {
		if sc.Target.RequiresAuth() {
			t.Fatalf("anonymous palette leaked %s", sc.Target)
		}
	}
	for _, sc := range Shortcuts(authedSnap()) {
		if sc.Target == ViewLogin || sc.Target == ViewRegister {
			t.Fatalf("authenticated palette must not offer %s", sc.Target)
		}
	}
}
