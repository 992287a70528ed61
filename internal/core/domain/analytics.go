package domain

// FilterStats are tallies over a filtered ticket set. Status counts and the
// self-picked/assigned split are independent dimensions.
type FilterStats struct {
	OpenOnlyCount   int `json:"openOnlyCount"`
	PendingCount    int `json:"pendingCount"`
	SelfPickedCount int `json:"selfPickedCount"`
	AssignedCount   int `json:"assignedCount"`
	ClosedCount     int `json:"closedCount"`
}

// FilterResult is the output of one filter pass. Truncated is set when the
// stored ticket set was larger than the per-request cap and only the newest
// tickets were considered.
type FilterResult struct {
	Tickets    []Ticket
	Stats      FilterStats
	Categories []string
	Truncated  bool
}

// FilterCriteria is the caller-owned filter state. The dashboard used to keep
// this in browser storage; here it is passed explicitly on every call.
type FilterCriteria struct {
	SearchTerm         string
	SelectedCategories []string
	ReferenceName      string
}
