package enrich

import "fmt"

// Status is the tri-state result of one source lookup.
type Status int

const (
	Found Status = iota + 1
	NotFound
	Failed
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// FailureKind classifies a Failed outcome.
type FailureKind string

const (
	TransportFailure FailureKind = "TransportFailure"
	ValidationError  FailureKind = "ValidationError"
	// EchoMismatch means the source answered for a different key than asked.
	EchoMismatch   FailureKind = "EchoMismatch"
	InvalidPayload FailureKind = "InvalidPayload"
	SourcePanic    FailureKind = "SourcePanic"
)

// Echo is the key a source says it answered for.
type Echo struct {
	Block     string
	Lot       string
	PageBlock string
	PageLot   string
}

// Outcome is what one source contributed for one record. Fields is only set
// when Status is Found, and a Found outcome is merged whole or not at all.
type Outcome struct {
	Source     string
	Status     Status
	Fields     map[string]any
	Reason     string
	Kind       FailureKind
	StatusCode int
	Echo       *Echo
	// Raw is the upstream payload, kept for the snapshot ledger.
	Raw []byte
}

func found(source string, fields map[string]any) Outcome {
	return Outcome{Source: source, Status: Found, Fields: fields}
}

func notFound(source, reason string) Outcome {
	return Outcome{Source: source, Status: NotFound, Reason: reason}
}

func failed(source string, kind FailureKind, code int, reason string) Outcome {
	return Outcome{Source: source, Status: Failed, Kind: kind, StatusCode: code, Reason: reason}
}

func (o Outcome) String() string {
	switch o.Status {
	case Found:
		return fmt.Sprintf("%s: found %d field(s)", o.Source, len(o.Fields))
	case NotFound:
		return fmt.Sprintf("%s: not found (%s)", o.Source, o.Reason)
	case Failed:
		if o.StatusCode != 0 {
			return fmt.Sprintf("%s: %s %d %s", o.Source, o.Kind, o.StatusCode, o.Reason)
		}
		return fmt.Sprintf("%s: %s %s", o.Source, o.Kind, o.Reason)
	default:
		return o.Source + ": unknown"
	}
}
