package domain

type ScreenKind string

const (
	ScreenHome          ScreenKind = "HOME"
	ScreenCashier       ScreenKind = "CASHIER"
	ScreenCounterSelect ScreenKind = "COUNTER_SELECT"
	ScreenCounterActive ScreenKind = "COUNTER_ACTIVE"
	ScreenAdmin         ScreenKind = "ADMIN"
)

// Screen is the active terminal mode. Category is set only for ScreenCounterActive.
type Screen struct {
	Kind     ScreenKind
	Category Category
}

var Home = Screen{Kind: ScreenHome}

// CounterActive returns the counter checkout screen of a category.
func CounterActive(c Category) Screen {
	return Screen{Kind: ScreenCounterActive, Category: c}
}

// IsCheckout reports whether scan sessions may exist on this screen.
func (s Screen) IsCheckout() bool {
	return s.Kind == ScreenCounterActive
}

// PinGated reports whether entering the screen requires a PIN.
func (s Screen) PinGated() bool {
	return s.Kind == ScreenCashier || s.Kind == ScreenAdmin
}

// String representation (for logging)
func (s Screen) String() string {
	if s.Kind == ScreenCounterActive {
		return string(s.Kind) + "(" + string(s.Category) + ")"
	}
	return string(s.Kind)
}

var transitions = map[ScreenKind][]ScreenKind{
	ScreenHome:          {ScreenCashier, ScreenCounterSelect, ScreenAdmin},
	ScreenCounterSelect: {ScreenCounterActive, ScreenHome},
	ScreenCounterActive: {ScreenCounterSelect},
	ScreenCashier:       {ScreenHome},
	ScreenAdmin:         {ScreenHome},
}

// CanTransitionTo reports whether the terminal may move from one screen to another.
func CanTransitionTo(from, to Screen) bool {
	for _, next := range transitions[from.Kind] {
		if next == to.Kind {
			return true
		}
	}
	return false
}

// BackTarget returns where the back action leads, false on Home.
func BackTarget(from Screen) (Screen, bool) {
	switch from.Kind {
	case ScreenCounterActive:
		return Screen{Kind: ScreenCounterSelect}, true
	case ScreenCounterSelect, ScreenCashier, ScreenAdmin:
		return Home, true
	default:
		return Screen{}, false
	}
}
