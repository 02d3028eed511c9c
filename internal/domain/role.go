// Package domain contains entity without logic, just meta-data
package domain

// Role classifies a signaling connection. Participants publish and
// consume media; the recorder is a single automated agent driven by
// server-side start/stop instructions.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleRecorder    Role = "recorder"
)
