package models

// CustomerPreference is PreferenceStore's return shape, per spec.md
// §6: a customer's preferred and blocked driver ids.
type CustomerPreference struct {
	UserID    string
	Preferred []string
	Blocked   []string
}

func (p CustomerPreference) Prefers(driverID string) bool {
	for _, id := range p.Preferred {
		if id == driverID {
			return true
		}
	}
	return false
}

func (p CustomerPreference) Blocks(driverID string) bool {
	for _, id := range p.Blocked {
		if id == driverID {
			return true
		}
	}
	return false
}
