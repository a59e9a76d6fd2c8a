package retry

import (
	"errors"
	"fmt"
)

// Kind classifies a failed outbound call
type Kind int

const (
	// KindTransient is any failure that is not a throttling signal
	KindTransient Kind = iota
	// KindRateLimited means the upstream asked us to slow down
	KindRateLimited
	// KindExhausted means every attempt failed
	KindExhausted
)

// String returns the kind's name
func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindExhausted:
		return "exhausted"
	default:
		return "transient"
	}
}

// Error is a failure carrying a machine-checkable kind. Clients set the kind
// where the failure originates, e.g. on an HTTP 429.
type Error struct {
	Kind     Kind
	Op       string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindExhausted:
		return fmt.Sprintf("%s: exhausted after %d attempts: %v", e.Op, e.Attempts, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// LastKind returns the kind of the final attempt's failure for an exhausted
// error, or the error's own kind otherwise.
func (e *Error) LastKind() Kind {
	if e.Kind != KindExhausted {
		return e.Kind
	}
	return classify(e.Err)
}

// RateLimited marks err as a throttling failure
func RateLimited(err error) error {
	return &Error{Kind: KindRateLimited, Err: err}
}

// Transient marks err as a retryable non-throttling failure
func Transient(err error) error {
	return &Error{Kind: KindTransient, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
// Errors without a kind are transient.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindTransient
}

// IsExhausted reports whether err is the result of running out of attempts
func IsExhausted(err error) bool {
	return KindOf(err) == KindExhausted
}

// classify finds the delay-relevant kind of a single attempt's failure,
// looking through any exhausted wrappers from nested executions.
func classify(err error) Kind {
	for err != nil {
		var re *Error
		if !errors.As(err, &re) {
			return KindTransient
		}
		if re.Kind != KindExhausted {
			return re.Kind
		}
		err = re.Err
	}
	return KindTransient
}
