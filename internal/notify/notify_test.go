package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/db"
	"github.com/noah-isme/toko-storefront/internal/events"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

type directory struct {
	orders map[string]db.Order
	users  map[string]db.User
}

func (d directory) GetOrder(_ context.Context, id pgtype.UUID) (db.Order, error) {
	o, ok := d.orders[db.UUIDString(id)]
	if !ok {
		return db.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (d directory) GetUserByID(_ context.Context, id pgtype.UUID) (db.User, error) {
	u, ok := d.users[db.UUIDString(id)]
	if !ok {
		return db.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func pgUUID(s string) pgtype.UUID {
	id, _ := db.ParseUUID(s)
	return id
}

func event(t *testing.T, topic, orderID string, payload any) db.DomainEvent {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return db.DomainEvent{ID: pgUUID(uuid.NewString()), Topic: topic, AggregateID: pgUUID(orderID), Payload: raw}
}

func TestTaskNotifierEnqueuesOrderTasks(t *testing.T) {
	orderID := uuid.NewString()
	client := &recordingEnqueuer{}
	n := TaskNotifier{Client: client, Queue: "notifications"}

	created := event(t, events.TopicOrderCreated, orderID, events.OrderCreated{OrderID: orderID, Email: "a@example.com", Total: 650000, Items: 3})
	require.NoError(t, n.Notify(context.Background(), created))
	changed := event(t, events.TopicOrderStatusChanged, orderID, events.OrderStatusChanged{OrderID: orderID, From: "pending", To: "confirmed"})
	require.NoError(t, n.Notify(context.Background(), changed))
	require.NoError(t, n.Notify(context.Background(), event(t, "catalog.updated", orderID, map[string]string{})))

	require.Len(t, client.tasks, 2)
	require.Equal(t, TaskOrderConfirmation, client.tasks[0].Type())
	require.Equal(t, TaskOrderStatus, client.tasks[1].Type())

	var task OrderTask
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &task))
	require.Equal(t, OrderTask{
		EventID: db.UUIDString(created.ID),
		Topic:   events.TopicOrderCreated,
		OrderID: orderID,
		Email:   "a@example.com",
		Total:   650000,
		Items:   3,
	}, task)
}

func TestTaskNotifierTopicToggleAndDuplicates(t *testing.T) {
	orderID := uuid.NewString()
	ev := event(t, events.TopicOrderStatusChanged, orderID, events.OrderStatusChanged{OrderID: orderID, To: "shipping"})

	client := &recordingEnqueuer{}
	off := TaskNotifier{Client: client, Topics: map[string]bool{events.TopicOrderStatusChanged: false}}
	require.NoError(t, off.Notify(context.Background(), ev))
	require.Empty(t, client.tasks)

	dup := TaskNotifier{Client: &recordingEnqueuer{err: asynq.ErrTaskIDConflict}}
	require.NoError(t, dup.Notify(context.Background(), ev))

	failing := TaskNotifier{Client: &recordingEnqueuer{err: errors.New("redis down")}}
	require.Error(t, failing.Notify(context.Background(), ev))
}

func orderTask(t *testing.T, taskType string, task OrderTask) *asynq.Task {
	t.Helper()
	raw, err := json.Marshal(task)
	require.NoError(t, err)
	return asynq.NewTask(taskType, raw)
}

func TestWorkerSendsConfirmationToAccountEmail(t *testing.T) {
	userID, orderID := uuid.NewString(), uuid.NewString()
	mail := &common.InMemoryEmail{}
	w := &Worker{Mail: mail, Directory: directory{
		users: map[string]db.User{userID: {ID: pgUUID(userID), Email: "budi@example.com", FullName: "Budi"}},
	}}

	err := w.Handle(context.Background(), orderTask(t, TaskOrderConfirmation, OrderTask{OrderID: orderID, UserID: userID, Total: 225000, Items: 1}))
	require.NoError(t, err)

	sent := mail.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, "budi@example.com", sent[0].To)
	require.Equal(t, "Pesanan diterima", sent[0].Subject)
	require.Contains(t, sent[0].HTML, "Budi")
	require.Contains(t, sent[0].HTML, "225000")
}

func TestWorkerStatusChangeResolvesUserThroughOrder(t *testing.T) {
	userID, orderID := uuid.NewString(), uuid.NewString()
	mail := &common.InMemoryEmail{}
	w := &Worker{Mail: mail, Directory: directory{
		orders: map[string]db.Order{orderID: {ID: pgUUID(orderID), UserID: pgUUID(userID), FullName: "Sari"}},
		users:  map[string]db.User{userID: {ID: pgUUID(userID), Email: "sari@example.com"}},
	}}

	err := w.Handle(context.Background(), orderTask(t, TaskOrderStatus, OrderTask{OrderID: orderID, From: "pending", To: "canceled"}))
	require.NoError(t, err)

	sent := mail.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, "sari@example.com", sent[0].To)
	require.Equal(t, "Pesanan dibatalkan", sent[0].Subject)
	require.Contains(t, sent[0].HTML, "dibatalkan")
}

func TestWorkerSkipsAnonymousOrders(t *testing.T) {
	orderID := uuid.NewString()
	mail := &common.InMemoryEmail{}
	w := &Worker{Mail: mail, Directory: directory{
		orders: map[string]db.Order{orderID: {ID: pgUUID(orderID), FullName: "Tamu"}},
	}}

	require.NoError(t, w.Handle(context.Background(), orderTask(t, TaskOrderStatus, OrderTask{OrderID: orderID, To: "shipping"})))
	require.Empty(t, mail.Sent())
}

func TestWorkerRejectsMalformedPayload(t *testing.T) {
	w := &Worker{Mail: &common.InMemoryEmail{}}
	err := w.Handle(context.Background(), asynq.NewTask(TaskOrderConfirmation, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = w.Handle(context.Background(), orderTask(t, TaskOrderConfirmation, OrderTask{}))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestWorkerWithoutSenderCompletesTask(t *testing.T) {
	userID, orderID := uuid.NewString(), uuid.NewString()
	w := &Worker{Directory: directory{
		users: map[string]db.User{userID: {ID: pgUUID(userID), Email: "budi@example.com"}},
	}}

	err := w.Handle(context.Background(), orderTask(t, TaskOrderConfirmation, OrderTask{OrderID: orderID, UserID: userID, Total: 1, Items: 1}))
	require.NoError(t, err)
}
