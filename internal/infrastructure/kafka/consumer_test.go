package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/marketplace-stock/internal/domain"
	"github.com/jhoicas/marketplace-stock/pkg/logger"
)

// fakeReader entrega los mensajes en orden y luego bloquea hasta que ctx se cancela.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafkago.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) requeue(m kafkago.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append([]kafkago.Message{m}, r.queue...)
}

type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) RefreshSKU(ctx context.Context, sku string) error {
	return m.Called(ctx, sku).Error(0)
}

func TestConsumer_RefrescaCadaSKU(t *testing.T) {
	reader := &fakeReader{queue: []kafkago.Message{
		{Offset: 1, Key: []byte("A")},
		{Offset: 2, Value: []byte(`{"sku":"B","movement_id":"m2"}`)},
		{Offset: 3, Value: []byte(`no es json`)},
		{Offset: 4, Key: []byte("DESCONOCIDO")},
	}}
	h := &MockHandler{}
	h.On("RefreshSKU", mock.Anything, "A").Return(nil).Once()
	h.On("RefreshSKU", mock.Anything, "B").Return(nil).Once()
	h.On("RefreshSKU", mock.Anything, "DESCONOCIDO").Return(domain.ErrUnknownSKU).Once()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewConsumer(reader, logger.Nop())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, h) }()

	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.committed) == 4
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3, 4}, reader.committed)
	h.AssertExpectations(t)
}

func TestConsumer_FalloTransitorioNoConfirma(t *testing.T) {
	msg := kafkago.Message{Offset: 7, Key: []byte("A")}
	reader := &fakeReader{queue: []kafkago.Message{msg}}
	h := &MockHandler{}
	h.On("RefreshSKU", mock.Anything, "A").Return(errors.New("conexión perdida")).Once().Run(func(mock.Arguments) {
		reader.requeue(msg)
	})
	h.On("RefreshSKU", mock.Anything, "A").Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewConsumer(reader, logger.Nop())
	c.backoff = time.Millisecond
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, h) }()

	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.committed) == 1
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{7}, reader.committed)
	h.AssertExpectations(t)
}
