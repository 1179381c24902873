package services

import "github.com/soochol/blogforge/internal/blog"

type outcomeKind int

const (
	outcomeOk outcomeKind = iota
	outcomeDegraded
	outcomeFail
)

// StageOutcome is the result of one stage: Ok, DegradedOk (the run continues
// and still succeeds, with a recorded caveat) or Fail (the run stops).
type StageOutcome struct {
	kind   outcomeKind
	reason string
	err    error
}

// Ok reports a stage that fully succeeded.
func Ok() StageOutcome { return StageOutcome{kind: outcomeOk} }

// DegradedOk reports a best-effort stage that failed without failing the run.
func DegradedOk(reason string) StageOutcome {
	return StageOutcome{kind: outcomeDegraded, reason: reason}
}

// Fail reports a stage failure that ends the run.
func Fail(err error) StageOutcome { return StageOutcome{kind: outcomeFail, err: err} }

func (o StageOutcome) Failed() bool   { return o.kind == outcomeFail }
func (o StageOutcome) Degraded() bool { return o.kind == outcomeDegraded }
func (o StageOutcome) Err() error     { return o.err }
func (o StageOutcome) Reason() string { return o.reason }

func (o StageOutcome) String() string {
	switch o.kind {
	case outcomeDegraded:
		return "degraded: " + o.reason
	case outcomeFail:
		return "failed: " + o.err.Error()
	default:
		return "ok"
	}
}

// StageDegradation names a stage that finished as DegradedOk.
type StageDegradation struct {
	Step   blog.StepName `json:"step"`
	Reason string        `json:"reason"`
}
