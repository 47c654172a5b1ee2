package models

// Assignment statuses observed from the API.
const (
	AssignmentAssigned  = "assigned"
	AssignmentConfirmed = "confirmed"
	AssignmentDeclined  = "declined"
)

// Ref is an embedded reference to another record.
type Ref struct {
	ID string `json:"id" yaml:"id"`
}

// SubcontractorRef is the subcontractor summary embedded in assignments.
type SubcontractorRef struct {
	ID    string `json:"id,omitempty" yaml:"id,omitempty"`
	Name  string `json:"name" yaml:"name"`
	Phone string `json:"phone,omitempty" yaml:"phone,omitempty"`
}

// Assignment links a subcontractor to a job.
type Assignment struct {
	ID              string            `json:"id" yaml:"id"`
	Status          string            `json:"status" yaml:"status"`
	JobID           string            `json:"job_id,omitempty" yaml:"job_id,omitempty"`
	SubcontractorID string            `json:"subcontractor_id,omitempty" yaml:"subcontractor_id,omitempty"`
	Subcontractor   *SubcontractorRef `json:"subcontractor,omitempty" yaml:"subcontractor,omitempty"`
	Job             *Ref              `json:"job,omitempty" yaml:"job,omitempty"`
}

// Active reports whether the assignment still holds the job
// (assigned or confirmed).
func (a Assignment) Active() bool {
	return a.Status == AssignmentAssigned || a.Status == AssignmentConfirmed
}

// Declined reports whether the subcontractor refused the assignment.
func (a Assignment) Declined() bool {
	return a.Status == AssignmentDeclined
}

// LinkedJobID returns the job id from either the flat or embedded field.
func (a Assignment) LinkedJobID() string {
	if a.JobID != "" {
		return a.JobID
	}
	if a.Job != nil {
		return a.Job.ID
	}
	return ""
}

// JobNotification is the notification summary embedded in a job.
type JobNotification struct {
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	Status string `json:"status" yaml:"status"`
	To     string `json:"to" yaml:"to"`
}

// Job is scheduled work created from a lead.
type Job struct {
	ID                   string           `json:"id" yaml:"id"`
	LeadID               string           `json:"lead_id" yaml:"lead_id"`
	Status               string           `json:"status" yaml:"status"`
	ScheduledDate        string           `json:"scheduled_date" yaml:"scheduled_date"`
	ScheduledWindowStart string           `json:"scheduled_window_start" yaml:"scheduled_window_start"`
	ScheduledWindowEnd   string           `json:"scheduled_window_end" yaml:"scheduled_window_end"`
	Assignments          []Assignment     `json:"assignments,omitempty" yaml:"assignments,omitempty"`
	Notification         *JobNotification `json:"notification,omitempty" yaml:"notification,omitempty"`
}

// SubcontractorName is the name on the first assignment, or "" when unassigned.
func (j Job) SubcontractorName() string {
	if len(j.Assignments) == 0 || j.Assignments[0].Subcontractor == nil {
		return ""
	}
	return j.Assignments[0].Subcontractor.Name
}

// Schedule renders the date and window, e.g. "2024-05-01 09:00-11:00".
func (j Job) Schedule() string {
	return j.ScheduledDate + " " + j.ScheduledWindowStart + "-" + j.ScheduledWindowEnd
}

// HasActiveAssignment reports whether any assignment is assigned or confirmed.
func (j Job) HasActiveAssignment() bool {
	for _, a := range j.Assignments {
		if a.Active() {
			return true
		}
	}
	return false
}

// AssignmentInput is the payload for patching an assignment.
type AssignmentInput struct {
	Status string `json:"status"`
}
