package models

// SkillSource records which tier of the skill registry a SkillMeta came
// from, used to resolve name collisions (project > global > builtin).
type SkillSource string

const (
	SkillSourceBuiltin SkillSource = "builtin"
	SkillSourceGlobal  SkillSource = "global"
	SkillSourceProject SkillSource = "project"
)

// SkillMeta is the L1 directory entry for a skill: enough to advertise it
// to the router and the model without loading its body.
type SkillMeta struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Tags        []string    `json:"tags,omitempty"`
	Source      SkillSource `json:"source"`
}

// SkillContent is the L2/L3 payload for a loaded skill.
type SkillContent struct {
	Name      string   `json:"name"`
	Body      string   `json:"body"`
	Resources []string `json:"resources,omitempty"`
}

// Routine is a cron-scheduled re-entry into the Agent loop.
type Routine struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	Message  string `json:"message"`
	Channel  string `json:"channel"`
	Enabled  bool   `json:"enabled"`
	Source   string `json:"source"` // "config" or "dynamic"
}

// RoutineExecution is one fired-and-completed run of a Routine.
type RoutineExecution struct {
	RoutineName string `json:"routine_name"`
	StartedAt   int64  `json:"started_at"`
	FinishedAt  int64  `json:"finished_at"`
	Success     bool   `json:"success"`
	OutputPreview string `json:"output_preview,omitempty"`
	Error       string `json:"error,omitempty"`
}
