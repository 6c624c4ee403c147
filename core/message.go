package core

// Operation names a mutating chain operation.
type Operation string

const (
	OpRegister   = Operation("register")
	OpUpdate     = Operation("update")
	OpStake      = Operation("stake")
	OpUnstake    = Operation("unstake")
	OpTransfer   = Operation("transfer")
	OpSetWeights = Operation("set_weights")
)

// Confirmation is how long a submission waits before reporting.
type Confirmation int

const (
	ConfirmDefault Confirmation = iota
	ConfirmNone
	ConfirmInclusion
	ConfirmFinalization
)

func (c Confirmation) String() string {
	switch c {
	case ConfirmNone:
		return "none"
	case ConfirmInclusion:
		return "inclusion"
	case ConfirmFinalization:
		return "finalization"
	default:
		return "default"
	}
}

// ParseConfirmation maps the CLI spelling onto a Confirmation.
func ParseConfirmation(s string) (Confirmation, bool) {
	switch s {
	case "", "default":
		return ConfirmDefault, true
	case "none", "broadcast":
		return ConfirmNone, true
	case "inclusion", "included":
		return ConfirmInclusion, true
	case "finalization", "finalized":
		return ConfirmFinalization, true
	}
	return ConfirmDefault, false
}

// DefaultConfirmation is the wait level an operation uses when the caller
// does not pick one.
func (op Operation) DefaultConfirmation() Confirmation {
	switch op {
	case OpTransfer, OpUnstake:
		return ConfirmInclusion
	default:
		return ConfirmFinalization
	}
}

// Resolve replaces ConfirmDefault by the operation default.
func (c Confirmation) Resolve(op Operation) Confirmation {
	if c == ConfirmDefault {
		return op.DefaultConfirmation()
	}
	return c
}

// Waits reports the inclusion/finalization flags handed to submission.
func (c Confirmation) Waits() (inclusion, finalization bool) {
	switch c {
	case ConfirmInclusion:
		return true, false
	case ConfirmFinalization:
		return false, true
	default:
		return false, false
	}
}
