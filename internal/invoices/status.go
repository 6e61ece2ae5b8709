package invoices

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusPartial   Status = "partial"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// paid -> paid covers an overpayment on a settled invoice.
var validNext = map[Status]map[Status]bool{
	StatusDraft:     {StatusPending: true, StatusPartial: true, StatusPaid: true, StatusCancelled: true},
	StatusPending:   {StatusPartial: true, StatusPaid: true, StatusCancelled: true},
	StatusPartial:   {StatusPartial: true, StatusPaid: true, StatusCancelled: true},
	StatusPaid:      {StatusPaid: true},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}
