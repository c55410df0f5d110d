package biometric

import (
	"context"
	"sync"

	"github.com/jtmarsh/latchkey/keyvault"
)

// SimGate is an in-process Gate for tests and demos. Each authentication
// consumes the next scripted outcome (nil meaning success); with an empty
// script every prompt succeeds. When the vault's auth-validity grace window
// is open the prompt is skipped entirely, mirroring hardware behavior.
type SimGate struct {
	vault *keyvault.Vault

	mu      sync.Mutex
	script  []error
	prompts int
}

// NewSimGate creates a SimGate bound to the given vault.
func NewSimGate(vault *keyvault.Vault) *SimGate {
	return &SimGate{vault: vault}
}

// Script queues outcomes for subsequent prompts, in order.
func (g *SimGate) Script(outcomes ...error) {
	g.mu.Lock()
	g.script = append(g.script, outcomes...)
	g.mu.Unlock()
}

// Prompts returns how many times a challenge was actually presented.
func (g *SimGate) Prompts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompts
}

// SimulateBiometricChange re-enrolls the simulated biometric, permanently
// invalidating auth-bound keys.
func (g *SimGate) SimulateBiometricChange() {
	g.vault.NotifyBiometricChange()
}

func (g *SimGate) AuthenticateForEncryption(ctx context.Context, c *keyvault.Cipher, _ PromptConfig) (*keyvault.BoundCipher, error) {
	return g.authenticate(ctx, c)
}

func (g *SimGate) AuthenticateForDecryption(ctx context.Context, c *keyvault.Cipher, _ PromptConfig) (*keyvault.BoundCipher, error) {
	return g.authenticate(ctx, c)
}

func (g *SimGate) authenticate(ctx context.Context, c *keyvault.Cipher) (*keyvault.BoundCipher, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if g.vault.WithinAuthValidity() {
		return keyvault.Bind(c), nil
	}

	g.mu.Lock()
	g.prompts++
	var outcome error
	if len(g.script) > 0 {
		outcome = g.script[0]
		g.script = g.script[1:]
	}
	g.mu.Unlock()

	if outcome != nil {
		return nil, outcome
	}
	return keyvault.Bind(c), nil
}

var _ Gate = (*SimGate)(nil)
