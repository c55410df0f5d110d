// Package latchkey wires the device-bound re-authentication stack into a
// single assembly: key vault, biometric gate, crypto gate, identity and
// registry gateways, session store, enrollment saga, and the session state
// machine, all sharing one single-flight guard.
package latchkey

import (
	"log/slog"

	"github.com/jtmarsh/latchkey/biometric"
	"github.com/jtmarsh/latchkey/cryptogate"
	"github.com/jtmarsh/latchkey/enroll"
	"github.com/jtmarsh/latchkey/identity"
	"github.com/jtmarsh/latchkey/keyvault"
	"github.com/jtmarsh/latchkey/registry"
	"github.com/jtmarsh/latchkey/session"
	"github.com/jtmarsh/latchkey/sessionstore"
)

// Core is a fully wired latchkey stack. Collaborators default to in-process
// implementations; production deployments swap in platform gates and real
// backends through the options.
type Core struct {
	Vault    *keyvault.Vault
	Bio      biometric.Gate
	Crypto   *cryptogate.Gate
	Identity identity.Gateway
	Registry registry.Registry
	Store    sessionstore.Store

	Enroll  *enroll.Manager
	Session *session.Manager
}

type config struct {
	log                   *slog.Logger
	bio                   biometric.Gate
	idp                   identity.Gateway
	reg                   registry.Registry
	store                 sessionstore.Store
	requireTopTier        bool
	authValiditySeconds   int
	sessionTimeoutMinutes int
}

// Option configures the assembly.
type Option func(*config)

// WithLogger sets the structured logger shared by the managers.
func WithLogger(log *slog.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

// WithBiometricGate sets the biometric gate. Defaults to a SimGate.
func WithBiometricGate(g biometric.Gate) Option {
	return func(c *config) {
		c.bio = g
	}
}

// WithIdentityGateway sets the identity backend. Defaults to an in-memory
// gateway.
func WithIdentityGateway(g identity.Gateway) Option {
	return func(c *config) {
		c.idp = g
	}
}

// WithDeviceRegistry sets the device registry backend. Defaults to an
// in-memory registry.
func WithDeviceRegistry(r registry.Registry) Option {
	return func(c *config) {
		c.reg = r
	}
}

// WithSessionStore sets the session record store. Defaults to an in-memory
// store.
func WithSessionStore(s sessionstore.Store) Option {
	return func(c *config) {
		c.store = s
	}
}

// WithRequireTopTier mandates StrongBox-class key isolation; enrollment fails
// terminally when it is unavailable.
func WithRequireTopTier(require bool) Option {
	return func(c *config) {
		c.requireTopTier = require
	}
}

// WithAuthValidity sets the biometric grace window in seconds.
func WithAuthValidity(seconds int) Option {
	return func(c *config) {
		c.authValiditySeconds = seconds
	}
}

// WithSessionTimeoutMinutes sets the inactivity timeout policy applied on
// foreground transitions.
func WithSessionTimeoutMinutes(minutes int) Option {
	return func(c *config) {
		c.sessionTimeoutMinutes = minutes
	}
}

// New assembles a Core.
func New(opts ...Option) (*Core, error) {
	cfg := &config{sessionTimeoutMinutes: session.DefaultTimeoutMinutes}
	for _, opt := range opts {
		opt(cfg)
	}

	provider, err := keyvault.NewSoftwareProvider()
	if err != nil {
		return nil, err
	}
	vaultOpts := []keyvault.Option{
		keyvault.WithRequireTopTier(cfg.requireTopTier),
	}
	if cfg.authValiditySeconds > 0 {
		vaultOpts = append(vaultOpts, keyvault.WithAuthValidity(cfg.authValiditySeconds))
	}
	vault := keyvault.New(provider, vaultOpts...)

	bio := cfg.bio
	if bio == nil {
		bio = biometric.NewSimGate(vault)
	}
	crypto := cryptogate.New(vault, bio)

	idp := cfg.idp
	if idp == nil {
		idp = identity.NewMemoryGateway()
	}
	reg := cfg.reg
	if reg == nil {
		reg = registry.NewMemoryRegistry()
	}
	store := cfg.store
	if store == nil {
		store = sessionstore.NewMemoryStore()
	}

	enrollOpts := []enroll.Option{}
	if cfg.log != nil {
		enrollOpts = append(enrollOpts, enroll.WithLogger(cfg.log))
	}
	enroller := enroll.New(enroll.Deps{
		Vault:    vault,
		Crypto:   crypto,
		Identity: idp,
		Registry: reg,
		Store:    store,
	}, enrollOpts...)

	sessionOpts := []session.Option{
		session.WithFlightGuard(enroller.FlightGuard()),
		session.WithTimeoutMinutes(cfg.sessionTimeoutMinutes),
	}
	if cfg.log != nil {
		sessionOpts = append(sessionOpts, session.WithLogger(cfg.log))
	}
	sess := session.New(session.Deps{
		Crypto:     crypto,
		Identity:   idp,
		Registry:   reg,
		Store:      store,
		Enrollment: enroller,
	}, sessionOpts...)

	return &Core{
		Vault:    vault,
		Bio:      bio,
		Crypto:   crypto,
		Identity: idp,
		Registry: reg,
		Store:    store,
		Enroll:   enroller,
		Session:  sess,
	}, nil
}
