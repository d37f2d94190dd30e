package interfaces

import "github.com/bioarchive/studysearch/internal/models"

// QueueService accepts indexing work and answers task status queries
type QueueService interface {
	Enqueue(accNo string, payload *models.IndexPayload) (*models.IndexTask, int, error)
	EnqueueDelete(accNo string) (*models.IndexTask, int, error)
	Status(accNo string) *models.TaskStatusResponse
	StatusByTaskID(taskID string) *models.TaskStatusResponse
	Available() bool
}
