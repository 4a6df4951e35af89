package tasks

import "context"

// Task types
type TaskType string

const (
	TypeReindexDocument   TaskType = "reindex:document"
	TypeReindexCollection TaskType = "reindex:collection"
)

// Queue name
const QueueReindex = "reindex"

// Client defines an interface for enqueuing tasks
type Client interface {
	// EnqueueReindexDocument adds a job to reindex a single document
	EnqueueReindexDocument(ctx context.Context, id int64) error

	// EnqueueReindexCollection adds a job to reindex every document in a
	// collection
	EnqueueReindexCollection(ctx context.Context, id int64) error
}
