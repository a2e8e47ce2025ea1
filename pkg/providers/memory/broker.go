package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/errors/coded"
	"github.com/lightningdb/chililog/pkg/errors/codes"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

// DefaultMaxDeliver is how many times a message is handed out before a rollback dead-letters it.
const DefaultMaxDeliver = 5

var ErrClosed = xerrors.New("broker is closed")

// Broker is an in-process Broker. Queues live as long as the broker and are not persisted.
type Broker struct {
	mu         sync.Mutex
	queues     map[string]*queue
	maxDeliver int
	closed     bool
}

var _ abstract.Broker = (*Broker)(nil)

type message struct {
	id         string
	meta       abstract.EntryMetadata
	body       string
	deliveries int
}

func (m *message) ID() string                       { return m.id }
func (m *message) Metadata() abstract.EntryMetadata { return m.meta }
func (m *message) Body() string                     { return m.body }
func (m *message) Deliveries() int                  { return m.deliveries }

// DeadLetter is a message moved out of the input queue together with the reason.
type DeadLetter struct {
	Metadata abstract.EntryMetadata
	Body     string
	Reason   string
}

type queue struct {
	ready    []*message
	inflight map[string]*message
	dlq      []DeadLetter
	size     int64
	limit    int64
	policy   abstract.MaxMemoryPolicy
	// changed is closed and replaced whenever messages are added or removed.
	changed chan struct{}
}

func (q *queue) notify() {
	close(q.changed)
	q.changed = make(chan struct{})
}

func (q *queue) remove(m *message) {
	delete(q.inflight, m.id)
	q.size -= int64(len(m.body))
	q.notify()
}

func NewBroker(maxDeliver int) *Broker {
	if maxDeliver <= 0 {
		maxDeliver = DefaultMaxDeliver
	}
	return &Broker{queues: map[string]*queue{}, maxDeliver: maxDeliver}
}

func (b *Broker) EnsureRepository(_ context.Context, cfg *abstract.RepositoryConfig) error {
	limit, err := cfg.MaxMemoryBytes()
	if err != nil {
		return coded.Wrap(codes.RepositoryConfig, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	q, ok := b.queues[cfg.Name]
	if !ok {
		q = &queue{inflight: map[string]*message{}, changed: make(chan struct{})}
		b.queues[cfg.Name] = q
	}
	q.limit = limit
	q.policy = cfg.MaxMemoryPolicy
	return nil
}

func (b *Broker) queue(repository string) (*queue, error) {
	if b.closed {
		return nil, ErrClosed
	}
	q, ok := b.queues[repository]
	if !ok {
		return nil, coded.Errorf(codes.UnknownRepo, "no queue for repository %s", repository)
	}
	return q, nil
}

func (b *Broker) Publish(ctx context.Context, repository string, meta abstract.EntryMetadata, body string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		q, err := b.queue(repository)
		if err != nil {
			return err
		}
		if q.limit <= 0 || q.size+int64(len(body)) <= q.limit {
			q.ready = append(q.ready, &message{id: uuid.NewString(), meta: meta, body: body})
			q.size += int64(len(body))
			q.notify()
			return nil
		}
		switch q.policy {
		case abstract.MaxMemoryPolicyDrop:
			return nil
		case abstract.MaxMemoryPolicyFail:
			return coded.Errorf(codes.QueuePublish, "queue of repository %s is full (%d bytes)", repository, q.limit)
		case abstract.MaxMemoryPolicyBlock:
			changed := q.changed
			b.mu.Unlock()
			select {
			case <-changed:
			case <-ctx.Done():
				b.mu.Lock()
				return ctx.Err()
			}
			b.mu.Lock()
		default:
			// PAGE keeps accepting; the overflow stays in memory here.
			q.ready = append(q.ready, &message{id: uuid.NewString(), meta: meta, body: body})
			q.size += int64(len(body))
			q.notify()
			return nil
		}
	}
}

func (b *Broker) QueueStats(_ context.Context, repository string) (*abstract.QueueStats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, err := b.queue(repository)
	if err != nil {
		return nil, err
	}
	return &abstract.QueueStats{
		Messages:    int64(len(q.ready) + len(q.inflight)),
		DeadLetters: int64(len(q.dlq)),
	}, nil
}

// DeadLetters returns a copy of the dead-letter queue of repository.
func (b *Broker) DeadLetters(repository string) []DeadLetter {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[repository]
	if !ok {
		return nil
	}
	return append([]DeadLetter(nil), q.dlq...)
}

func (b *Broker) NewConsumerSession(_ context.Context, cfg *abstract.RepositoryConfig) (abstract.ConsumerSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.queue(cfg.Name); err != nil {
		return nil, err
	}
	return &session{broker: b, repository: cfg.Name, held: map[string]*message{}}, nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, q := range b.queues {
		q.notify()
	}
	return nil
}

type session struct {
	broker     *Broker
	repository string
	held       map[string]*message
	closed     bool
}

func (s *session) Receive(ctx context.Context, wait time.Duration) (abstract.QueueMessage, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	b := s.broker
	for {
		b.mu.Lock()
		if s.closed {
			b.mu.Unlock()
			return nil, xerrors.New("session is closed")
		}
		q, err := b.queue(s.repository)
		if err != nil {
			b.mu.Unlock()
			return nil, coded.Wrap(codes.QueueReceive, err)
		}
		if len(q.ready) > 0 {
			m := q.ready[0]
			q.ready = q.ready[1:]
			m.deliveries++
			q.inflight[m.id] = m
			s.held[m.id] = m
			b.mu.Unlock()
			return m, nil
		}
		changed := q.changed
		b.mu.Unlock()

		select {
		case <-changed:
		case <-timer.C:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *session) take(msg abstract.QueueMessage) (*queue, *message, error) {
	m, ok := s.held[msg.ID()]
	if !ok {
		return nil, nil, xerrors.Errorf("message %s is not held by this session", msg.ID())
	}
	q, err := s.broker.queue(s.repository)
	if err != nil {
		return nil, nil, err
	}
	delete(s.held, m.id)
	return q, m, nil
}

func (s *session) Commit(msg abstract.QueueMessage) error {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	q, m, err := s.take(msg)
	if err != nil {
		return err
	}
	q.remove(m)
	return nil
}

func (s *session) Rollback(msg abstract.QueueMessage) error {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	q, m, err := s.take(msg)
	if err != nil {
		return err
	}
	s.requeue(q, m, "delivery limit exhausted")
	return nil
}

func (s *session) requeue(q *queue, m *message, reason string) {
	if m.deliveries >= s.broker.maxDeliver {
		q.dlq = append(q.dlq, DeadLetter{Metadata: m.meta, Body: m.body, Reason: reason})
		q.remove(m)
		return
	}
	delete(q.inflight, m.id)
	q.ready = append(q.ready, m)
	q.notify()
}

func (s *session) DeadLetter(msg abstract.QueueMessage, reason error) error {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	q, m, err := s.take(msg)
	if err != nil {
		return err
	}
	text := ""
	if reason != nil {
		text = reason.Error()
	}
	q.dlq = append(q.dlq, DeadLetter{Metadata: m.meta, Body: m.body, Reason: text})
	q.remove(m)
	return nil
}

// Close returns every message still held by the session to the queue.
func (s *session) Close() error {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	q, err := s.broker.queue(s.repository)
	if err != nil {
		return nil
	}
	for id, m := range s.held {
		delete(s.held, id)
		s.requeue(q, m, "session closed")
	}
	return nil
}
