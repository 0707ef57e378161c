// Package envconf loads named ledger environments from JSON configuration.
//
// An environment names a feed backend, a state backend, the owner address,
// and the admission minimum. Backends are opened through the registries, so
// callers still need to link the desired backend plugins via blank imports.
package envconf

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"xdao.co/fundvault/feed"
	"xdao.co/fundvault/feed/feedregistry"
	"xdao.co/fundvault/fixedpoint"
	"xdao.co/fundvault/identity"
	"xdao.co/fundvault/ledger"
	"xdao.co/fundvault/state"
	"xdao.co/fundvault/state/stateregistry"
)

// LocalName is the built-in development environment, available without any
// config file: deterministic static feed (2000 stable per unit), in-memory
// state, minimum 5 stable.
const LocalName = "local"

// Config holds named environments.
//
// Example:
//
//	{
//	  "environments": {
//	    "staging": {
//	      "owner": "0x0102030405060708090a0b0c0d0e0f1011121314",
//	      "minimum_stable": "5",
//	      "feed":  {"name":"file", "config":{"file-path":"/etc/fundvault/price.json"}},
//	      "state": {"name":"ldb",  "config":{"ldb-path":"/var/lib/fundvault/state"}},
//	      "mirrors": [{"name":"mem", "id":"audit"}]
//	    }
//	  }
//	}
//
// Note: backend config values are backend-specific; keys mirror the
// backend's CLI flag names.
type Config struct {
	Environments map[string]Environment `json:"environments"`
}

// Environment describes one deployable ledger setup.
type Environment struct {
	// Owner is the withdrawal-authorized address in text form.
	Owner string `json:"owner"`
	// MinimumStable is the admission threshold as a decimal stable amount
	// ("5", "0.25").
	MinimumStable string `json:"minimum_stable"`

	Feed  BackendConfig `json:"feed"`
	State BackendConfig `json:"state"`

	// Mirrors are additional state backends every batch is copied to.
	// Reads are served by the primary only.
	Mirrors []BackendConfig `json:"mirrors,omitempty"`
}

// BackendConfig selects one registry backend with its options.
type BackendConfig struct {
	// Name is the registry backend name to open (e.g. "mem", "ldb", "static").
	Name string `json:"name"`
	// ID is an optional stable alias used in reporting. If empty, Name is used.
	ID     string            `json:"id,omitempty"`
	Config map[string]string `json:"config,omitempty"`
}

func (b BackendConfig) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

// Local returns the built-in development environment.
func Local() Environment {
	return Environment{
		Owner:         LocalOwner().String(),
		MinimumStable: "5",
		Feed: BackendConfig{
			Name: "static",
			Config: map[string]string{
				"static-price":    "200000000000",
				"static-decimals": "8",
			},
		},
		State: BackendConfig{Name: "mem"},
	}
}

// LocalOwner is the deterministic owner of the built-in local environment.
func LocalOwner() identity.Address {
	return identity.SeedAddress("local-owner")
}

// LoadFile reads and validates a config file.
func LoadFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("envconf: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Resolve returns the named environment from the config file at path.
//
// An empty name selects LocalName. File-defined environments shadow the
// built-in one; with an empty path only the built-in is available.
func Resolve(path, name string) (Environment, error) {
	if name == "" {
		name = LocalName
	}
	if path == "" {
		if name == LocalName {
			return Local(), nil
		}
		return Environment{}, fmt.Errorf("envconf: environment %q requires a config file (only %q is built in)", name, LocalName)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return Environment{}, err
	}
	return cfg.Environment(name)
}

// Environment returns the named environment, falling back to the built-in
// local environment when the file does not define one by that name.
func (c Config) Environment(name string) (Environment, error) {
	if e, ok := c.Environments[name]; ok {
		return e, nil
	}
	if name == LocalName {
		return Local(), nil
	}
	known := make([]string, 0, len(c.Environments)+1)
	for k := range c.Environments {
		known = append(known, k)
	}
	known = append(known, LocalName)
	sort.Strings(known)
	return Environment{}, fmt.Errorf("envconf: unknown environment %q (have: %s)", name, strings.Join(known, ", "))
}

// Validate checks every environment.
func (c Config) Validate() error {
	names := make([]string, 0, len(c.Environments))
	for name := range c.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == "" {
			return errors.New("envconf: empty environment name")
		}
		if err := c.Environments[name].Validate(); err != nil {
			return fmt.Errorf("envconf: environment %q: %w", name, err)
		}
	}
	return nil
}

// Validate checks the environment's fields without opening any backend.
func (e Environment) Validate() error {
	if _, err := identity.ParseAddress(e.Owner); err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	min, err := fixedpoint.ParseStable(e.MinimumStable)
	if err != nil {
		return fmt.Errorf("minimum_stable: %w", err)
	}
	if min.Sign() <= 0 {
		return fmt.Errorf("minimum_stable %q must be positive", e.MinimumStable)
	}
	if e.Feed.Name == "" {
		return errors.New("feed backend name is required")
	}
	if e.State.Name == "" {
		return errors.New("state backend name is required")
	}

	seen := map[string]struct{}{e.State.id(): {}}
	for _, m := range e.Mirrors {
		if m.Name == "" {
			return errors.New("mirror backend name is required")
		}
		if _, ok := seen[m.id()]; ok {
			return fmt.Errorf("duplicate state backend id %q", m.id())
		}
		seen[m.id()] = struct{}{}
	}
	return nil
}

// Instance is an opened environment.
type Instance struct {
	Ledger *ledger.Ledger
	// Store is the backing the ledger writes through: the primary backend,
	// or a state.Mirror when mirrors are configured.
	Store state.Backing
	Feed  feed.Source
}

// Open instantiates the environment's feed and store through the registries
// and constructs the ledger. Environments are a CLI concern, so backends are
// opened with CLI usage. The returned close function releases every opened
// backend in reverse order.
func (e Environment) Open() (*Instance, func() error, error) {
	if err := e.Validate(); err != nil {
		return nil, nil, fmt.Errorf("envconf: %w", err)
	}
	owner, err := identity.ParseAddress(e.Owner)
	if err != nil {
		return nil, nil, fmt.Errorf("envconf: owner: %w", err)
	}
	min, err := fixedpoint.ParseStable(e.MinimumStable)
	if err != nil {
		return nil, nil, fmt.Errorf("envconf: minimum_stable: %w", err)
	}

	var closers []func() error
	closeAll := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	fail := func(err error) (*Instance, func() error, error) {
		_ = closeAll()
		return nil, nil, err
	}

	src, closeFeed, err := feedregistry.OpenWithConfig(e.Feed.Name, feedregistry.UsageCLI, e.Feed.Config)
	if err != nil {
		return fail(fmt.Errorf("envconf: feed %q: %w", e.Feed.id(), err))
	}
	if closeFeed != nil {
		closers = append(closers, closeFeed)
	}

	primary, closeState, err := stateregistry.OpenWithConfig(e.State.Name, stateregistry.UsageCLI, e.State.Config)
	if err != nil {
		return fail(fmt.Errorf("envconf: state %q: %w", e.State.id(), err))
	}
	if closeState != nil {
		closers = append(closers, closeState)
	}

	store := primary
	if len(e.Mirrors) > 0 {
		named := make([]state.NamedBacking, 0, len(e.Mirrors))
		for _, m := range e.Mirrors {
			b, closeMirror, err := stateregistry.OpenWithConfig(m.Name, stateregistry.UsageCLI, m.Config)
			if err != nil {
				return fail(fmt.Errorf("envconf: mirror %q: %w", m.id(), err))
			}
			if closeMirror != nil {
				closers = append(closers, closeMirror)
			}
			named = append(named, state.NamedBacking{Name: m.id(), Backing: b})
		}
		store = state.Mirror{Primary: primary, Mirrors: named}
	}

	led, err := ledger.New(store, owner, src, min)
	if err != nil {
		return fail(err)
	}
	return &Instance{Ledger: led, Store: store, Feed: src}, closeAll, nil
}
