package enums

// ReturnStatus tracks a customer return.
type ReturnStatus string

const (
	ReturnStatusRequested ReturnStatus = "requested"
	ReturnStatusApproved  ReturnStatus = "approved"
	ReturnStatusRejected  ReturnStatus = "rejected"
)

var validReturnStatuses = []ReturnStatus{
	ReturnStatusRequested,
	ReturnStatusApproved,
	ReturnStatusRejected,
}

// String implements fmt.Stringer.
func (s ReturnStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReturnStatus.
func (s ReturnStatus) IsValid() bool {
	return known(s, validReturnStatuses)
}

// ParseReturnStatus converts raw input into a ReturnStatus.
func ParseReturnStatus(value string) (ReturnStatus, error) {
	return parse(value, validReturnStatuses, "return status")
}

// ReturnReason is the customer-selected reason for a return.
type ReturnReason string

const (
	ReturnReasonWrongSize      ReturnReason = "wrong_size"
	ReturnReasonDefective      ReturnReason = "defective"
	ReturnReasonNotAsDescribed ReturnReason = "not_as_described"
	ReturnReasonChangedMind    ReturnReason = "changed_mind"
	ReturnReasonOther          ReturnReason = "other"
)

var validReturnReasons = []ReturnReason{
	ReturnReasonWrongSize,
	ReturnReasonDefective,
	ReturnReasonNotAsDescribed,
	ReturnReasonChangedMind,
	ReturnReasonOther,
}

// String implements fmt.Stringer.
func (r ReturnReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReturnReason.
func (r ReturnReason) IsValid() bool {
	return known(r, validReturnReasons)
}

// Label is the human text used in customer emails.
func (r ReturnReason) Label() string {
	switch r {
	case ReturnReasonWrongSize:
		return "Wrong size"
	case ReturnReasonDefective:
		return "Defective item"
	case ReturnReasonNotAsDescribed:
		return "Not as described"
	case ReturnReasonChangedMind:
		return "Changed my mind"
	default:
		return "Other"
	}
}

// ParseReturnReason converts raw input into a ReturnReason.
func ParseReturnReason(value string) (ReturnReason, error) {
	return parse(value, validReturnReasons, "return reason")
}
