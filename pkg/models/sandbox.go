package models

// SandboxPolicy controls what the agent process may touch during a session.
// It is persisted at sandbox/policy.json inside the session directory and
// translated to the agent CLI's permission flags on each turn.
type SandboxPolicy struct {
	// PermissionMode maps to the agent's --permission-mode flag
	// (e.g. "default", "acceptEdits", "plan").
	PermissionMode string `json:"permission_mode,omitempty"`

	// AllowedTools and DeniedTools are agent tool patterns.
	AllowedTools []string `json:"allowed_tools,omitempty"`
	DeniedTools  []string `json:"denied_tools,omitempty"`
}
