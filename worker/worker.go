package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/carverlane/archivist/server/container"
	"github.com/carverlane/archivist/server/repositories"
	"github.com/carverlane/archivist/server/services"
	"github.com/carverlane/archivist/server/tasks"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// Worker represents the background job processor
type Worker struct {
	server *asynq.Server
	client *asynq.Client

	documentRepository *repositories.DocumentRepository
	documentService    *services.DocumentService
}

// Ensure Worker implements tasks.Client
var _ tasks.Client = (*Worker)(nil)

// NewWorker creates a new worker with the given container and dependencies
func NewWorker(
	container *container.Container,
	documentRepository *repositories.DocumentRepository,
	documentService *services.DocumentService,
) (*Worker, error) {
	// Configure server with queues and priorities
	server := asynq.NewServerFromRedisClient(
		container.Redis.Client,
		asynq.Config{
			Queues: map[string]int{
				tasks.QueueReindex: 10,
			},
			Concurrency: 16,
			Logger:      nil,
		},
	)

	// Client for enqueuing tasks
	client := asynq.NewClientFromRedisClient(container.Redis.Client)

	return &Worker{
		server:             server,
		client:             client,
		documentRepository: documentRepository,
		documentService:    documentService,
	}, nil
}

func (w *Worker) Start() error {
	mux := asynq.NewServeMux()

	mux.HandleFunc(string(tasks.TypeReindexDocument), w.handleReindexDocument)
	mux.HandleFunc(string(tasks.TypeReindexCollection), w.handleReindexCollection)

	return w.server.Start(mux)
}

func (w *Worker) Stop() error {
	w.server.Shutdown()
	return w.client.Close()
}

func (w *Worker) encodeIdPayload(id int64) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, id)
	return buf.Bytes()
}

func (w *Worker) decodeIdPayload(b []byte) int64 {
	buf := bytes.NewReader(b)
	var n int64
	binary.Read(buf, binary.BigEndian, &n)
	return n
}

func (w *Worker) enqueueReindex(ctx context.Context, taskType tasks.TaskType, id int64) error {
	payload := w.encodeIdPayload(id)

	task := asynq.NewTask(string(taskType), []byte(payload))

	_, err := w.client.EnqueueContext(
		ctx,
		task,
		asynq.MaxRetry(5),
		asynq.Timeout(3*time.Minute),
		asynq.Queue(tasks.QueueReindex),
		asynq.Retention(24*time.Hour),
		asynq.TaskID(fmt.Sprintf("%s:%d", string(taskType), id)),
	)

	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			log.Debug().Str("task", string(taskType)).Int64("id", id).Msg("Reindex task already queued, skipping duplicate")
			return nil
		}
		return fmt.Errorf("error enqueueing task: %w", err)
	}

	log.Debug().Str("task", string(taskType)).Int64("id", id).Msg("Successfully enqueued reindex task")

	return nil
}

func (w *Worker) EnqueueReindexDocument(ctx context.Context, id int64) error {
	if err := w.enqueueReindex(ctx, tasks.TypeReindexDocument, id); err != nil {
		return fmt.Errorf("error enqueueing document reindex: %w", err)
	}

	return nil
}

func (w *Worker) EnqueueReindexCollection(ctx context.Context, id int64) error {
	if err := w.enqueueReindex(ctx, tasks.TypeReindexCollection, id); err != nil {
		return fmt.Errorf("error enqueueing collection reindex: %w", err)
	}

	return nil
}

func (w *Worker) handleReindexDocument(ctx context.Context, task *asynq.Task) error {
	id := w.decodeIdPayload(task.Payload())

	log.Info().Int64("id", id).Msg("Executing indexing job for document")

	document, err := w.documentService.GetByInternalID(ctx, id)
	if err != nil {
		return fmt.Errorf("error getting document: %w", err)
	}

	if err := w.documentService.Index(ctx, document); err != nil {
		return fmt.Errorf("error reindexing document: %w", err)
	}

	return nil
}

// handleReindexCollection fans a collection out into one reindex job per
// member document.
func (w *Worker) handleReindexCollection(ctx context.Context, task *asynq.Task) error {
	id := w.decodeIdPayload(task.Payload())

	log.Info().Int64("id", id).Msg("Executing indexing job for collection")

	documentIDs, err := w.documentRepository.FindIDsByCollectionID(ctx, id)
	if err != nil {
		return fmt.Errorf("error listing collection documents: %w", err)
	}

	for _, documentID := range documentIDs {
		if err := w.EnqueueReindexDocument(ctx, documentID); err != nil {
			return fmt.Errorf("error queueing document reindex: %w", err)
		}
	}

	return nil
}
