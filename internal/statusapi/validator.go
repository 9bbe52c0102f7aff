package statusapi

import "github.com/go-playground/validator/v10"

// requestValidator implements echo.Validator, wiring
// go-playground/validator into c.Validate the way Echo's own docs
// recommend — the teacher validates request bodies by hand
// (validateMachineStatus); this surface uses struct tags instead
// since its bodies are few and simple.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{v: validator.New()}
}

func (rv *requestValidator) Validate(i any) error {
	return rv.v.Struct(i)
}
