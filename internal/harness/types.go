package harness

import "fmt"

// StepTrace records the outcome of one step.
type StepTrace struct {
	Index    int
	Op       string
	As       string
	At       uint64
	Contract string // saved name, or the raw id for unknown names
	Success  bool
	Code     string
	Message  string
	Receipt  *uint64
}

// EventTrace is a stored event with the lock id replaced by its saved name.
type EventTrace struct {
	Seq      int64
	Contract string
	Kind     string
	Caller   string
	At       uint64
	Detail   map[string]string
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool

	Steps  []StepTrace
	Events []EventTrace

	// Errors holds expectation and assertion failures.
	Errors []string
}

// NewResult creates a new Result with Pass=true.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepTrace{},
		Events: []EventTrace{},
		Errors: []string{},
	}
}

// AddError adds an error message and sets Pass=false.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}
