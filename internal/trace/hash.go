package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for trace hashes. The version suffix allows the encoding
// to change without colliding with old hashes.
const (
	DomainTrace = "fieldnet/trace/v1"
	DomainEvent = "fieldnet/event/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the content hash of a trace. The session id is not hashed, so
// a replay under a new id hashes the same as its recording.
func Hash(t Trace) (string, error) {
	t.SessionID = ""
	canonical, err := t.Canonical()
	if err != nil {
		return "", fmt.Errorf("trace hash: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// EventHash returns the content hash of one event.
func EventHash(e Event) (string, error) {
	canonical, err := MarshalCanonical(e.Object())
	if err != nil {
		return "", fmt.Errorf("event hash: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// Divergence locates the first difference between two traces.
type Divergence struct {
	Index int    // position of the first differing event
	Want  *Event // nil if the expected trace ended
	Got   *Event // nil if the actual trace ended
}

func (d *Divergence) Error() string {
	switch {
	case d.Want == nil:
		return fmt.Sprintf("trace diverges at event %d: unexpected %s", d.Index, describe(d.Got))
	case d.Got == nil:
		return fmt.Sprintf("trace diverges at event %d: missing %s", d.Index, describe(d.Want))
	default:
		return fmt.Sprintf("trace diverges at event %d: want %s, got %s", d.Index, describe(d.Want), describe(d.Got))
	}
}

func describe(e *Event) string {
	if e.Kind.IsStep() {
		return fmt.Sprintf("%s %s[e=%d r=%d p=%s t=%d]", e.Kind, e.Step, e.Element, e.Round, e.Phase, e.Timestamp)
	}
	return fmt.Sprintf("%s %s#%d", e.Kind, e.Label, e.Element)
}

// Diff compares two traces event by event, ignoring session ids. Returns nil
// when they are identical.
func Diff(want, got Trace) (*Divergence, error) {
	n := max(len(want.Events), len(got.Events))
	for i := 0; i < n; i++ {
		if i >= len(want.Events) {
			return &Divergence{Index: i, Got: &got.Events[i]}, nil
		}
		if i >= len(got.Events) {
			return &Divergence{Index: i, Want: &want.Events[i]}, nil
		}
		wh, err := EventHash(want.Events[i])
		if err != nil {
			return nil, err
		}
		gh, err := EventHash(got.Events[i])
		if err != nil {
			return nil, err
		}
		if wh != gh {
			return &Divergence{Index: i, Want: &want.Events[i], Got: &got.Events[i]}, nil
		}
	}
	return nil, nil
}
