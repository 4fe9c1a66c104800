package participation

type Phase string

const (
	PhasePending    Phase = "pending"
	PhaseConfirmed  Phase = "confirmed"
	PhaseRolledBack Phase = "rolled_back"
)

// Optimistic is the client-visible state of a toggle. The displayed value
// flips before the store confirms and is restored if the store fails.
type Optimistic struct {
	Previous  State `json:"previous"`
	Displayed State `json:"displayed"`
	Phase     Phase `json:"phase"`
}

func BeginToggle(current State) Optimistic {
	return Optimistic{
		Previous:  current,
		Displayed: current.Opposite(),
		Phase:     PhasePending,
	}
}

// Confirm displays the state the store actually holds.
func (o Optimistic) Confirm(actual State) Optimistic {
	o.Displayed = actual
	o.Phase = PhaseConfirmed
	return o
}

func (o Optimistic) Rollback() Optimistic {
	o.Displayed = o.Previous
	o.Phase = PhaseRolledBack
	return o
}
