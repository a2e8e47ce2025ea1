package nats

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/errors/coded"
	"github.com/lightningdb/chililog/pkg/errors/codes"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

// session pulls one message at a time from the storage consumer and settles it explicitly.
type session struct {
	broker     *Broker
	consumer   jetstream.Consumer
	dlqSubject string
	maxDeliver int
}

type message struct {
	msg        jetstream.Msg
	id         string
	meta       abstract.EntryMetadata
	deliveries int
}

func (m *message) ID() string                       { return m.id }
func (m *message) Metadata() abstract.EntryMetadata { return m.meta }
func (m *message) Body() string                     { return string(m.msg.Data()) }
func (m *message) Deliveries() int                  { return m.deliveries }

func (s *session) Receive(ctx context.Context, wait time.Duration) (abstract.QueueMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	batch, err := s.consumer.Fetch(1, jetstream.FetchMaxWait(wait))
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, jetstream.ErrNoMessages) {
			return nil, nil
		}
		return nil, coded.Wrap(codes.QueueReceive, xerrors.Errorf("unable to fetch: %w", err))
	}
	var received jetstream.Msg
	for msg := range batch.Messages() {
		received = msg
	}
	if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) && !errors.Is(err, jetstream.ErrNoMessages) {
		return nil, coded.Wrap(codes.QueueReceive, xerrors.Errorf("fetch failed: %w", err))
	}
	if received == nil {
		return nil, nil
	}
	md, err := received.Metadata()
	if err != nil {
		return nil, xerrors.Errorf("unable to read message metadata: %w", err)
	}
	return &message{
		msg:        received,
		id:         strconv.FormatUint(md.Sequence.Stream, 10),
		meta:       headerMetadata(received.Headers()),
		deliveries: int(md.NumDelivered),
	}, nil
}

func (s *session) unwrap(msg abstract.QueueMessage) (*message, error) {
	m, ok := msg.(*message)
	if !ok {
		return nil, xerrors.Errorf("unexpected message type %T", msg)
	}
	return m, nil
}

func (s *session) Commit(msg abstract.QueueMessage) error {
	m, err := s.unwrap(msg)
	if err != nil {
		return err
	}
	return m.msg.Ack()
}

// Rollback asks for redelivery. The last allowed delivery is dead-lettered instead, since the server
// would otherwise just drop it.
func (s *session) Rollback(msg abstract.QueueMessage) error {
	m, err := s.unwrap(msg)
	if err != nil {
		return err
	}
	if m.deliveries >= s.maxDeliver {
		return s.DeadLetter(msg, xerrors.Errorf("delivery limit %d exhausted", s.maxDeliver))
	}
	return m.msg.Nak()
}

func (s *session) DeadLetter(msg abstract.QueueMessage, reason error) error {
	m, err := s.unwrap(msg)
	if err != nil {
		return err
	}
	header := metadataHeader(m.meta)
	if reason != nil {
		header.Set(HeaderDeadLetterReason, reason.Error())
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.broker.cfg.AckWait)
	defer cancel()
	if _, err := s.broker.jetStream.PublishMsg(ctx, &nats.Msg{Subject: s.dlqSubject, Header: header, Data: m.msg.Data()}); err != nil {
		return coded.Wrap(codes.QueuePublish, xerrors.Errorf("unable to publish to %s: %w", s.dlqSubject, err))
	}
	return m.msg.Ack()
}

// Close does nothing: unsettled messages return to the stream once their ack wait expires.
func (s *session) Close() error {
	return nil
}
