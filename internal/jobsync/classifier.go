package jobsync

import "strings"

// Kind is the classification of a backend status string.
type Kind int

const (
	KindProgress Kind = iota
	KindSuccess
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	default:
		return "progress"
	}
}

// Classifier maps free-text backend statuses to terminal kinds.
// Success matches exactly; failure matches a keyword exactly or contains
// FailureSubstring case-insensitively.
type Classifier struct {
	Success          []string
	FailureKeywords  []string
	FailureSubstring string
	// GuardFailure suppresses repeated failure notices within one run.
	GuardFailure bool
}

// Classify returns the kind of status. Success takes precedence.
func (c Classifier) Classify(status string) Kind {
	for _, s := range c.Success {
		if status == s {
			return KindSuccess
		}
	}
	for _, s := range c.FailureKeywords {
		if status == s {
			return KindFailure
		}
	}
	if c.FailureSubstring != "" && strings.Contains(strings.ToLower(status), strings.ToLower(c.FailureSubstring)) {
		return KindFailure
	}
	return KindProgress
}

// ParametersClassifier holds the markers the backend publishes for the
// parameters job.
var ParametersClassifier = Classifier{
	Success:          []string{"completed", "success", "Programación completa.", "Finalizado", "Finished"},
	FailureKeywords:  []string{"failed", "blocked"},
	FailureSubstring: "error",
	GuardFailure:     true,
}

// SetSerialClassifier holds the markers for the set-serial job.
var SetSerialClassifier = Classifier{
	Success:          []string{"Programación de Serial Completa"},
	FailureKeywords:  []string{"failed", "auth_failed"},
	FailureSubstring: "error",
}
