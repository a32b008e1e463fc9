package consultations

// WizardStep identifica el paso del intake de consulta.
// El paso 1 crea el borrador en el backend; el paso 2 actualiza el payload.
type WizardStep int

const (
	StepCategory WizardStep = 1
	StepDetail   WizardStep = 2
)

// Step1Input es el alta inicial: especie + campos específicos de especie.
type Step1Input struct {
	Category        string
	FormData        map[string]any
	DetallePaciente string
}

// Step2Input completa la consulta. Punteros: nil = no tocar.
type Step2Input struct {
	FormData        map[string]any
	DetallePaciente *string
	Complete        bool // true cierra la consulta (status completed)
}
