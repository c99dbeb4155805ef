package engine

import (
	"io"
	"log/slog"

	"github.com/roach88/fieldnet/internal/phase"
)

type testElement int64

func (e testElement) ElementID() int64 { return int64(e) }

// recordingStep appends its label to a shared log when processed.
type recordingStep struct {
	StepBase
	kind   string
	label  string
	log    *[]string
	policy DedupPolicy
	onRun  func()
}

func (s *recordingStep) Kind() string { return s.kind }

func (s *recordingStep) Dedup() DedupPolicy { return s.policy }

func (s *recordingStep) Process() {
	if s.log != nil {
		*s.log = append(*s.log, s.label)
	}
	if s.onRun != nil {
		s.onRun()
	}
}

func newStep(el int64, p phase.Phase, round int, label string, log *[]string) *recordingStep {
	return &recordingStep{
		StepBase: NewStepBase(testElement(el), p, round),
		kind:     "record",
		label:    label,
		log:      log,
	}
}

var (
	testOrder  = phase.MustNewOrder("linking", "inference", "training")
	pLinking   = testOrder.MustLookup("linking")
	pInference = testOrder.MustLookup("inference")
	pTraining  = testOrder.MustLookup("training")
)

func newTestSession(opts ...SessionOption) *Session {
	base := []SessionOption{
		WithPhases(testOrder),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithIDGenerator(NewFixedGenerator("test-session")),
	}
	return NewSession(append(base, opts...)...)
}

func recoverInvariant(fn func()) (code InvariantCode) {
	defer func() {
		if r := recover(); r != nil {
			if ie, ok := r.(*InvariantError); ok {
				code = ie.Code
				return
			}
			panic(r)
		}
	}()
	fn()
	return ""
}
