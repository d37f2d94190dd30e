package models

import "time"

// TaskState is the lifecycle state of an indexing task
type TaskState string

const (
	TaskNotFound   TaskState = "NOT_FOUND"
	TaskQueued     TaskState = "QUEUED"
	TaskInProgress TaskState = "IN_PROGRESS"
	TaskDone       TaskState = "DONE"
	TaskError      TaskState = "ERROR"
)

// IndexTask is one queued submission-indexing request, persisted through
// badgerhold so task status survives restarts
type IndexTask struct {
	ID        string    `badgerhold:"key" json:"taskId"`
	AccNo     string    `badgerholdIndex:"AccNo" json:"accNo"`
	State     TaskState `json:"state"`
	Message   string    `json:"message,omitempty"`
	Delete    bool      `json:"delete,omitempty"` // true for deletion tasks
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IndexPayload is the pre-extracted document set of one submission as
// delivered by the ingestion collaborator
type IndexPayload struct {
	Submission FlatDocument   `json:"submission"`
	Files      []FlatDocument `json:"files,omitempty"`
	PageTab    string         `json:"pagetab,omitempty"`
}

// TaskStatusResponse is the GET /submissions/{accNo}/status body
type TaskStatusResponse struct {
	State   TaskState `json:"state"`
	Message string    `json:"message,omitempty"`
	TaskID  string    `json:"taskId,omitempty"`
}

// EnqueueResponse is the POST /submissions/{accNo}/index body
type EnqueueResponse struct {
	AccNo         string `json:"accNo"`
	QueuePosition int    `json:"queuePosition"`
	TaskID        string `json:"taskId"`
	StatusURL     string `json:"statusUrl"`
}
