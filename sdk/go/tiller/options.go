package tiller

// Option configures a Client at creation time.
type Option func(*clientConfig)

type clientConfig struct {
	identity    string
	configPath  string
	trailPath   string
	approvalDir string
	initiator   string
}

// WithIdentity sets the tenant identity decisions run under.
func WithIdentity(identity string) Option {
	return func(c *clientConfig) { c.identity = identity }
}

// WithConfig sets the path to the governance config YAML.
func WithConfig(path string) Option {
	return func(c *clientConfig) { c.configPath = path }
}

// WithTrail enables the on-disk decision trail at the given path.
func WithTrail(path string) Option {
	return func(c *clientConfig) { c.trailPath = path }
}

// WithApprovalDir sets the approval store directory.
func WithApprovalDir(dir string) Option {
	return func(c *clientConfig) { c.approvalDir = dir }
}

// WithInitiator sets who decisions are attributed to ("human", "agent",
// "system"). Default is "agent".
func WithInitiator(initiator string) Option {
	return func(c *clientConfig) { c.initiator = initiator }
}
