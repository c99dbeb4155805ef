// Package config loads fieldnet configuration from CUE.
//
// A config file is unified with the embedded #Config schema, which supplies
// defaults and closes the struct, so unknown keys are rejected:
//
//	phases: ["linking", "inference", "training"]
//	scheduler: maxSteps: 5000
//	field: tolerance: 1e-6
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/fieldnet/internal/engine"
	"github.com/roach88/fieldnet/internal/phase"
)

//go:embed schema.cue
var schemaCUE string

// Config is the decoded configuration.
type Config struct {
	Phases    []string        `json:"phases"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Field     FieldConfig     `json:"field"`
	Network   NetworkConfig   `json:"network"`
}

// SchedulerConfig bounds a guarded drain.
type SchedulerConfig struct {
	MaxSteps         int `json:"maxSteps"`
	OscillationLimit int `json:"oscillationLimit"`
}

// FieldConfig holds cell defaults.
type FieldConfig struct {
	Tolerance float64 `json:"tolerance"`
}

// NetworkConfig holds reference network settings.
type NetworkConfig struct {
	LearningRate float64 `json:"learningRate"`
}

// Error is a configuration error with a CUE source position when known.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default returns the configuration of an empty file.
func Default() *Config {
	cfg, err := Parse("default.cue", nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema: %v", err))
	}
	return cfg
}

// Load reads and parses a CUE config file.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return Parse(path, src)
}

// Parse unifies src with the schema and decodes the result.
func Parse(filename string, src []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, formatCUEError(err)
	}
	if _, err := cfg.PhaseOrder(); err != nil {
		return nil, &Error{
			Field:   "phases",
			Message: err.Error(),
			Pos:     unified.LookupPath(cue.ParsePath("phases")).Pos(),
		}
	}
	return &cfg, nil
}

// PhaseOrder builds the declared phase order.
func (c *Config) PhaseOrder() (*phase.Order, error) {
	return phase.NewOrder(c.Phases...)
}

// Guard returns the drain guard configured by the scheduler section.
func (c *Config) Guard() engine.Guard {
	return engine.Guard{
		MaxSteps:         c.Scheduler.MaxSteps,
		OscillationLimit: c.Scheduler.OscillationLimit,
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &Error{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return &Error{Field: "cue", Message: first.Error()}
}
