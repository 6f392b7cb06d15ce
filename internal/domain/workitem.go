package domain

import "time"

// Workflow identifies one of the sheet-driven backoffice processes
type Workflow string

const (
	WorkflowDeviations    Workflow = "deviations"
	WorkflowCancellations Workflow = "cancellations"
	WorkflowClaims        Workflow = "claims"
)

// ParseWorkflow validates a workflow name coming from a request path
func ParseWorkflow(s string) (Workflow, error) {
	switch w := Workflow(s); w {
	case WorkflowDeviations, WorkflowCancellations, WorkflowClaims:
		return w, nil
	}
	return "", ErrUnknownWorkflow
}

// DisplayName is the label used in chat notifications
func (w Workflow) DisplayName() string {
	switch w {
	case WorkflowDeviations:
		return "desvíos"
	case WorkflowCancellations:
		return "prevención"
	case WorkflowClaims:
		return "reclamos"
	}
	return string(w)
}

// Adjustment reasons as labelled in the backoffice reason selector
const (
	ReasonOperationsMissing    = "Support - DTC - Operations - Missing Product"
	ReasonDeliveryMissing      = "Support - DTC - Delivery Point - Missing Product"
	ReasonDeliveryBadCondition = "Support - DTC - Delivery Point - Product in bad condition"
	ReasonPrepaid              = "Pago anticipado"
)

// DeviationType is the kind of stock shortfall reported for a line item
type DeviationType string

const (
	DeviationMissing        DeviationType = "faltante"
	DeviationPartialMissing DeviationType = "faltante_parcial"
)

// Deviation is a missing or partially missing line item that needs an adjustment request
type Deviation struct {
	Row          int           `json:"row"`
	Date         time.Time     `json:"date"`
	Country      string        `json:"country"`
	Type         DeviationType `json:"type"`
	OrderID      string        `json:"orderId"`
	OrderURL     string        `json:"orderUrl"`
	Product      string        `json:"product"`
	OriginalQty  int           `json:"originalQty"`
	ModifiedQty  int           `json:"modifiedQty"`
	RequestedQty int           `json:"requestedQty"`
	Reason       string        `json:"reason"`
}

// Cancellation is an order to be cancelled
type Cancellation struct {
	Row      int    `json:"row"`
	OrderID  string `json:"orderId"`
	OrderURL string `json:"orderUrl"`
	Reason   string `json:"reason"`
}

// ClaimLine is one claimed product inside an order
type ClaimLine struct {
	Row      int       `json:"row"`
	Date     time.Time `json:"date"`
	Status   string    `json:"status"`
	Product  string    `json:"product"`
	Quantity int       `json:"quantity"`
	Reason   string    `json:"reason"`
}

// ClaimOrder groups the claimed lines of a single order
type ClaimOrder struct {
	OrderID  string      `json:"orderId"`
	OrderURL string      `json:"orderUrl"`
	Lines    []ClaimLine `json:"lines"`
}

// RejectedRow is a sheet row that could not be turned into a work item
type RejectedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Plan holds the work items of one workflow. Only the slice matching the workflow is set.
type Plan struct {
	Workflow      Workflow       `json:"workflow"`
	Deviations    []Deviation    `json:"deviations,omitempty"`
	Cancellations []Cancellation `json:"cancellations,omitempty"`
	Claims        []ClaimOrder   `json:"claims,omitempty"`
	Rejected      []RejectedRow  `json:"rejected,omitempty"`
	Skipped       []string       `json:"skipped,omitempty"` // order ids already processed
}

// ItemCount is the number of work items the client has to go through
func (p *Plan) ItemCount() int {
	return len(p.Deviations) + len(p.Cancellations) + len(p.Claims)
}

// OutcomeStatus is what happened to a work item on the backoffice
type OutcomeStatus string

const (
	OutcomeDone    OutcomeStatus = "done"
	OutcomeNoMatch OutcomeStatus = "no_match"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome is reported by the client after acting on a work item
type Outcome struct {
	OrderID string        `json:"orderId" binding:"required"`
	Product string        `json:"product,omitempty"`
	Status  OutcomeStatus `json:"status" binding:"required,oneof=done no_match failed"`
	Detail  string        `json:"detail,omitempty"`
}

// RunCounts tallies outcomes of a run
type RunCounts struct {
	Planned int `json:"planned"`
	Done    int `json:"done"`
	NoMatch int `json:"noMatch"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Run is one execution of a workflow by the client
type Run struct {
	ID         string     `json:"id"`
	Workflow   Workflow   `json:"workflow"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Counts     RunCounts  `json:"counts"`
}

// Finished reports whether the run was closed
func (r *Run) Finished() bool {
	return r.FinishedAt != nil
}
