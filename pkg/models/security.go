package models

// AutonomyMode controls whether mutating tools may run, require
// confirmation, or are denied outright.
type AutonomyMode string

const (
	// ModeReadOnly denies every mutating tool call.
	ModeReadOnly AutonomyMode = "read_only"
	// ModeSupervised allows mutating calls but requires confirmation.
	ModeSupervised AutonomyMode = "supervised"
	// ModeFull runs mutating tools unattended.
	ModeFull AutonomyMode = "full"
)

// SecurityPolicy is the set of rules the agent enforces before and during
// tool execution. It is immutable once constructed for a turn; the Config
// tool edits the backing TOML file and a fresh policy is loaded on reload.
type SecurityPolicy struct {
	Mode AutonomyMode `json:"mode"`

	// AllowedCommands is the shell command whitelist. An empty set in Full
	// mode allows everything; in Supervised mode an empty set also allows
	// everything but every call requires confirmation.
	AllowedCommands map[string]struct{} `json:"allowed_commands"`

	// Workspace is the canonicalized root directory every accessed path
	// must descend from.
	Workspace string `json:"workspace"`

	// BlockedPaths are canonicalized path prefixes that are always denied,
	// even inside Workspace.
	BlockedPaths []string `json:"blocked_paths"`

	// AllowedHTTPHosts restricts the Http tool to a host whitelist. Empty
	// means "no additional restriction beyond the SSRF guard".
	AllowedHTTPHosts map[string]struct{} `json:"allowed_http_hosts"`

	// InjectionCheck enables InjectionFilter scanning of tool output.
	InjectionCheck bool `json:"injection_check"`

	// MaxActionsPerHour bounds tool executions per hour for one Agent.
	// Zero disables the check.
	MaxActionsPerHour int `json:"max_actions_per_hour"`

	// AllowDotfiles permits FileRead/FileWrite to touch dotfiles.
	AllowDotfiles bool `json:"allow_dotfiles"`
}

// MemoryEntry is one stored note with an optional recall-time relevance
// score (unset for get/store operations).
type MemoryEntry struct {
	Key       string  `json:"key"`
	Content   string  `json:"content"`
	Category  string  `json:"category"`
	CreatedAt int64   `json:"created_at"`
	UpdatedAt int64   `json:"updated_at"`
	Score     float64 `json:"score,omitempty"`
}
