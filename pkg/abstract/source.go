package abstract

import (
	"context"
	"time"
)

// QueueMessage is one raw log line received from a repository's input queue.
type QueueMessage interface {
	ID() string
	Metadata() EntryMetadata
	Body() string
	// Deliveries is how many times the transport handed out this message, including the current one.
	Deliveries() int
}

// ConsumerSession is a transactional consumer of one repository's input queue.
// A session is used by a single goroutine.
type ConsumerSession interface {
	// Receive waits at most wait for the next message. A nil message with a nil error means the wait timed out.
	Receive(ctx context.Context, wait time.Duration) (QueueMessage, error)
	// Commit acknowledges the message so it is never redelivered.
	Commit(msg QueueMessage) error
	// Rollback returns the message to the queue. The transport dead-letters it once the delivery limit is exhausted.
	Rollback(msg QueueMessage) error
	// DeadLetter moves the message to the repository's dead-letter queue and commits it on the input queue.
	DeadLetter(msg QueueMessage, reason error) error
	Close() error
}

type QueueStats struct {
	Messages    int64
	DeadLetters int64
}

// Broker is the message-queue capability of the server.
type Broker interface {
	// EnsureRepository creates or updates the input and dead-letter queues of a repository.
	EnsureRepository(ctx context.Context, cfg *RepositoryConfig) error
	NewConsumerSession(ctx context.Context, cfg *RepositoryConfig) (ConsumerSession, error)
	Publish(ctx context.Context, repository string, meta EntryMetadata, body string) error
	QueueStats(ctx context.Context, repository string) (*QueueStats, error)
	Close() error
}

// EntryStore is the document store capability.
type EntryStore interface {
	Save(ctx context.Context, repository string, entry *RepositoryEntry) error
	Count(ctx context.Context, repository string) (int64, error)
	Close(ctx context.Context) error
}

// Authorizer answers whether a principal holds a role.
type Authorizer interface {
	Authenticate(username, password string) bool
	HasRole(username, role string) bool
}
