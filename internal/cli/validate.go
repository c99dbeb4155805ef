package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fieldnet/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool             `json:"valid"`
	Config *config.Config   `json:"config,omitempty"`
	Error  *ValidationError `json:"error,omitempty"`
}

// ValidationError locates a config error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.cue>",
		Short: "Validate a scheduler config",
		Long: `Validate a CUE config file against the built-in schema.

Checks the declared phase order (non-empty, unique names), the scheduler
guard limits, and the field tolerance, then prints the resolved config
with defaults filled in.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := config.Load(path)
	if err != nil {
		verr := toValidationError(err)
		if formatter.IsJSON() {
			_ = formatter.Failure(ErrCodeConfigInvalid, verr.Message, ValidationResult{Valid: false, Error: verr})
		} else {
			_ = formatter.Error(ErrCodeConfigInvalid, err.Error(), nil)
		}
		// Validation errors are command-level errors (exit code 2)
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	formatter.VerboseLog("validated %s", path)
	if formatter.IsJSON() {
		return formatter.Success(ValidationResult{Valid: true, Config: cfg})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "✓ Config valid")
	fmt.Fprintf(w, "  phases:            %s\n", strings.Join(cfg.Phases, " < "))
	fmt.Fprintf(w, "  max steps:         %d\n", cfg.Scheduler.MaxSteps)
	fmt.Fprintf(w, "  oscillation limit: %d\n", cfg.Scheduler.OscillationLimit)
	fmt.Fprintf(w, "  field tolerance:   %g\n", cfg.Field.Tolerance)
	fmt.Fprintf(w, "  learning rate:     %g\n", cfg.Network.LearningRate)
	return nil
}

// toValidationError extracts the position of a config error.
func toValidationError(err error) *ValidationError {
	var cerr *config.Error
	if !errors.As(err, &cerr) {
		return &ValidationError{Field: "file", Message: err.Error()}
	}
	verr := &ValidationError{Field: cerr.Field, Message: cerr.Message}
	if cerr.Pos.IsValid() {
		verr.File = cerr.Pos.Filename()
		verr.Line = cerr.Pos.Line()
		verr.Column = cerr.Pos.Column()
	}
	return verr
}
