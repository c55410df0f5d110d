package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jtmarsh/latchkey/internal/util"
	"github.com/jtmarsh/latchkey/internal/uuid"
)

// MemoryGateway is an in-process Gateway for tests and demos. Accounts are
// seeded with Register; emails are NFKD-normalized and case-folded.
type MemoryGateway struct {
	mu       sync.Mutex
	accounts map[string]*account
	current  *Identity

	// SignInErr, ReplaceErr and SignOutErr, when set, are returned by the
	// corresponding method before any state change. Used to inject faults.
	SignInErr  error
	ReplaceErr error
	SignOutErr error
}

type account struct {
	userID string
	email  string
	secret string
}

// NewMemoryGateway creates an empty MemoryGateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{accounts: make(map[string]*account)}
}

// Register seeds an account with a temporary credential and returns its
// user id.
func (g *MemoryGateway) Register(email, tempSecret string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := normalizeEmail(email)
	acct := &account{userID: uuid.New(), email: key, secret: tempSecret}
	g.accounts[key] = acct
	return acct.userID
}

func (g *MemoryGateway) SignInWithTemporaryCredential(ctx context.Context, email, tempSecret string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.SignInErr != nil {
		return Identity{}, g.SignInErr
	}

	acct, ok := g.accounts[normalizeEmail(email)]
	if !ok {
		return Identity{}, ErrUserNotFound
	}
	if acct.secret != tempSecret {
		return Identity{}, ErrInvalidCredential
	}

	id := Identity{
		UserID: acct.userID,
		Email:  acct.email,
		Token:  fmt.Sprintf("bearer-%s-%s", acct.userID, uuid.New()),
	}
	g.current = &id
	return id, nil
}

func (g *MemoryGateway) ReplaceTemporaryCredential(ctx context.Context, newSecret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ReplaceErr != nil {
		return g.ReplaceErr
	}
	if g.current == nil {
		return ErrNotSignedIn
	}
	acct, ok := g.accounts[g.current.Email]
	if !ok {
		return ErrUserNotFound
	}
	acct.secret = newSecret
	return nil
}

func (g *MemoryGateway) CurrentIdentity(ctx context.Context) (Identity, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return Identity{}, false
	}
	return *g.current, true
}

func (g *MemoryGateway) SignOut(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.SignOutErr != nil {
		return g.SignOutErr
	}
	g.current = nil
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(util.Normalize(email)))
}

var _ Gateway = (*MemoryGateway)(nil)
