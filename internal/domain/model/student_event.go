//revive:disable-next-line:var-naming // legacy package name used across the project
package model

import "time"

// StudentEventKind is the kind of roster change.
type StudentEventKind string

const (
	StudentCreated StudentEventKind = "created"
	StudentUpdated StudentEventKind = "updated"
	StudentDeleted StudentEventKind = "deleted"
)

// StudentEvent describes a successful roster write issued by a signed-in user.
type StudentEvent struct {
	Kind        StudentEventKind `json:"kind"`
	StudentID   string           `json:"student_id"`
	StudentName string           `json:"student_name"`
	ActorUserID string           `json:"actor_user_id"`
	ActorEmail  string           `json:"actor_email"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

// Summary renders a one-line description for notifications.
func (e StudentEvent) Summary() string {
	name := e.StudentName
	if name == "" {
		name = e.StudentID
	}
	switch e.Kind {
	case StudentCreated:
		return "Student " + name + " was added"
	case StudentUpdated:
		return "Student " + name + " was updated"
	case StudentDeleted:
		return "Student " + name + " was removed"
	default:
		return "Student " + name + " changed"
	}
}
