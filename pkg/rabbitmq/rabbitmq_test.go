package rabbitmq

import (
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	a := m.Called(name, durable)
	return amqp.Queue{Name: name}, a.Error(0)
}

func (m *mockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(exchange, key, msg).Error(0)
}

func (m *mockChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	a := m.Called(queue, autoAck)
	ch, _ := a.Get(0).(<-chan amqp.Delivery)
	return ch, a.Error(1)
}

func (m *mockChannel) Close() error {
	return m.Called().Error(0)
}

type mockAck struct {
	mock.Mock
}

func (m *mockAck) Ack(multiple bool) error          { return m.Called(multiple).Error(0) }
func (m *mockAck) Nack(multiple, requeue bool) error { return m.Called(multiple, requeue).Error(0) }

func TestPublishUserEvent(t *testing.T) {
	ch := new(mockChannel)
	c := &Client{channel: ch, log: zap.NewNop()}

	var published amqp.Publishing
	ch.On("Publish", "", UserEventsQueue, mock.AnythingOfType("amqp.Publishing")).
		Run(func(args mock.Arguments) { published = args.Get(2).(amqp.Publishing) }).
		Return(nil).Once()

	err := c.PublishUserEvent(EventUserCreated, map[string]interface{}{"userId": 7})
	require.NoError(t, err)
	ch.AssertExpectations(t)

	assert.Equal(t, EventUserCreated, published.Type)
	assert.Equal(t, "application/json", published.ContentType)
	assert.Equal(t, amqp.Persistent, published.DeliveryMode)
	assert.NotEmpty(t, published.MessageId)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(published.Body, &body))
	assert.Equal(t, EventUserCreated, body["event"])
	assert.Equal(t, float64(7), body["userId"])
}

func TestPublishUserEventError(t *testing.T) {
	ch := new(mockChannel)
	c := &Client{channel: ch, log: zap.NewNop()}
	ch.On("Publish", "", UserEventsQueue, mock.Anything).Return(errors.New("channel closed"))

	err := c.PublishUserEvent(EventUserDeleted, map[string]interface{}{"userId": 1})
	assert.ErrorContains(t, err, "channel closed")
}

func TestPublishWithoutChannel(t *testing.T) {
	c := &Client{log: zap.NewNop()}
	assert.Error(t, c.PublishUserEvent(EventUserUpdated, nil))
}

func TestConsumeUserEvents(t *testing.T) {
	ch := new(mockChannel)
	c := &Client{channel: ch, log: zap.NewNop()}

	deliveries := make(chan amqp.Delivery)
	close(deliveries)
	ch.On("QueueDeclare", UserEventsQueue, true).Return(nil)
	ch.On("Consume", UserEventsQueue, false).Return((<-chan amqp.Delivery)(deliveries), nil)

	require.NoError(t, c.ConsumeUserEvents(func(amqp.Delivery) error { return nil }))
	ch.AssertExpectations(t)
}

func TestSettle(t *testing.T) {
	c := &Client{log: zap.NewNop()}

	t.Run("acks handled message", func(t *testing.T) {
		a := new(mockAck)
		a.On("Ack", false).Return(nil).Once()
		c.settle(a, nil, 1)
		a.AssertExpectations(t)
	})

	t.Run("nacks failed message without requeue", func(t *testing.T) {
		a := new(mockAck)
		a.On("Nack", false, false).Return(nil).Once()
		c.settle(a, errors.New("bad"), 2)
		a.AssertExpectations(t)
	})
}

func TestAuditHandler(t *testing.T) {
	h := AuditHandler(zap.NewNop())

	assert.NoError(t, h(amqp.Delivery{Type: EventUserCreated, Body: []byte(`{"userId":3}`)}))
	assert.Error(t, h(amqp.Delivery{Body: []byte("not json")}))
}
