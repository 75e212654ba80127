package cli

import (
	"fmt"
	"os"

	"github.com/grovetools/agentd/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
	}
}

// Handle provides user-friendly error messages based on error type
func (h *ErrorHandler) Handle(err error) error {
	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(os.Stderr, "❌ Configuration not found. Create an agentd.yml in your project or home config directory.\n")
		return err

	case errors.ErrCodeSessionNotFound:
		if aerr, ok := err.(*errors.AgentdError); ok {
			fmt.Fprintf(os.Stderr, "❌ Session '%s' not found\n", aerr.Details["session_id"])
			fmt.Fprintf(os.Stderr, "Run 'agentd sessions list' to see available sessions.\n")
		}
		return err

	case errors.ErrCodeSessionBusy:
		fmt.Fprintf(os.Stderr, "❌ Session is busy with another turn. Try again when it finishes.\n")
		return err

	case errors.ErrCodeAgentNotFound:
		if aerr, ok := err.(*errors.AgentdError); ok {
			fmt.Fprintf(os.Stderr, "❌ Agent binary '%s' not found. Check the agent.binary setting in agentd.yml\n",
				aerr.Details["binary"])
		}
		return err

	case errors.ErrCodeSpawnFailed:
		fmt.Fprintf(os.Stderr, "❌ Failed to start the agent process. Check the daemon logs for details.\n")
		return err

	default:
		fmt.Fprintf(os.Stderr, "❌ Error: %v\n", err)

		if h.Verbose {
			if aerr, ok := err.(*errors.AgentdError); ok {
				fmt.Fprintf(os.Stderr, "\nError details:\n%s\n", aerr.ToJSON())
			}
		}
		return err
	}
}
