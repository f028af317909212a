package firewall

// Backend translates rule operations into OS firewall invocations.
//
// Every method validates the chain name before running anything, and
// failures come back as errors carrying the full command arguments.
// Backends never log: callers decide which failures matter, since the
// cleanup path expects most of its calls to fail on a clean system.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Check reports whether an identical rule already exists in the
	// chain. Absence is a result, not an error; the error is reserved
	// for the probe itself failing to run.
	Check(chain string, r Rule) (bool, error)

	// Insert prepends the rule to the chain.
	Insert(chain string, r Rule) error

	// Append adds the rule at the end of the chain.
	Append(chain string, r Rule) error

	// Delete removes one instance of the rule from the chain.
	Delete(chain string, r Rule) error

	// NewChain creates the chain.
	NewChain(chain string) error

	// FlushChain removes every rule in the chain.
	FlushChain(chain string) error

	// DeleteChain removes the (empty) chain itself.
	DeleteChain(chain string) error

	// DefaultDeny reports whether the platform drops unmatched inbound
	// traffic on its own. Chain-model backends fall through to the
	// system accept policy; group-model backends sit on a default-deny
	// profile. Lists use this to decide whether a whitelist needs an
	// explicit catch-all DROP and whether a blacklist needs a standing
	// allow for its guarded port.
	DefaultDeny() bool

	// InputChain returns the global inbound chain that forwarding
	// rules hook into, or "" when the backend matches its groups
	// directly and no forwarding layer exists.
	InputChain() string
}
