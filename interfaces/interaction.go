package interfaces

import "context"

// InteractionProvider abstracts the user prompts needed by irreversible or
// secret-bearing operations: deletion confirmation, passphrase entry, and
// backup file selection. Injecting it keeps the orchestrator's control flow
// deterministic in tests.
//
// ReadSecret and ReadLine report ok=false when the user declines the prompt.
// Declining is cancellation, not an error: the in-flight operation completes
// as a no-op with no further network effect.
type InteractionProvider interface {
	// Confirm asks a yes/no question, used to gate irreversible operations.
	Confirm(ctx context.Context, prompt string) (bool, error)

	// ReadSecret reads a secret value without echoing it.
	ReadSecret(ctx context.Context, prompt string) (value string, ok bool, err error)

	// ReadLine reads one line of visible input.
	ReadLine(ctx context.Context, prompt string) (value string, ok bool, err error)
}
