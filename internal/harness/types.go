package harness

// TraceEvent records the outcome of one scenario step.
type TraceEvent struct {
	Seq    int    `json:"seq"`
	Device string `json:"device"`
	Action string `json:"action"`
	Peer   string `json:"peer,omitempty"`

	// EventID is set for deposit steps.
	EventID string `json:"event_id,omitempty"`

	// Rate is the rate key written by set_rate steps.
	Rate string `json:"rate,omitempty"`

	ImportedEvents int `json:"imported_events"`
	ImportedRates  int `json:"imported_rates"`

	// Peer-side counts of a lan_sync step.
	PeerImportedEvents int `json:"peer_imported_events,omitempty"`
	PeerImportedRates  int `json:"peer_imported_rates,omitempty"`

	// Error is the error kind of a failed step, lower-cased.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one entry per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends ev with the next sequence number.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
