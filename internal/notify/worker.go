package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/db"
	"github.com/noah-isme/toko-storefront/internal/obs"
)

// Directory resolves recipients. *db.Queries satisfies it.
type Directory interface {
	GetOrder(ctx context.Context, id pgtype.UUID) (db.Order, error)
	GetUserByID(ctx context.Context, id pgtype.UUID) (db.User, error)
}

// Worker sends the customer emails behind the order task types. A nil Mail
// drops messages after rendering them.
type Worker struct {
	Mail      common.EmailSender
	Directory Directory
	Logger    *zerolog.Logger
}

// Register binds the worker's handlers to mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskOrderConfirmation, w.Handle)
	mux.HandleFunc(TaskOrderStatus, w.Handle)
}

// Handle processes one order task. Orders placed without an account and
// without an email on the event have nobody to notify and are dropped.
func (w *Worker) Handle(ctx context.Context, t *asynq.Task) (err error) {
	task, err := decodeTask(t)
	if err != nil {
		return err
	}
	defer func() { obs.RecordNotification("send", err) }()

	to, name, err := w.recipient(ctx, task)
	if err != nil {
		return err
	}
	if to == "" {
		w.logger().Info().Str("order_id", task.OrderID).Str("task", t.Type()).Msg("notification_skipped_no_recipient")
		return nil
	}
	msg, err := render(t.Type(), task, name)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := w.mailer().Send(to, msg.Subject, msg.HTML); err != nil {
		return fmt.Errorf("send %s for order %s: %w", t.Type(), task.OrderID, err)
	}
	w.logger().Info().Str("order_id", task.OrderID).Str("task", t.Type()).Msg("notification_sent")
	return nil
}

func (w *Worker) recipient(ctx context.Context, task OrderTask) (email, name string, err error) {
	if w.Directory == nil {
		return task.Email, "", nil
	}
	userID := task.UserID
	if userID == "" {
		orderID, err := db.ParseUUID(task.OrderID)
		if err != nil {
			return "", "", fmt.Errorf("order id %q: %v: %w", task.OrderID, err, asynq.SkipRetry)
		}
		o, err := w.Directory.GetOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "", "", fmt.Errorf("order %s vanished: %w", task.OrderID, asynq.SkipRetry)
			}
			return "", "", fmt.Errorf("load order: %w", err)
		}
		name = o.FullName
		userID = db.UUIDString(o.UserID)
	}
	if userID == "" {
		return task.Email, name, nil
	}
	id, err := db.ParseUUID(userID)
	if err != nil {
		return task.Email, name, nil
	}
	u, err := w.Directory.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Email, name, nil
		}
		return "", "", fmt.Errorf("load user: %w", err)
	}
	if name == "" {
		name = u.FullName
	}
	if task.Email != "" {
		return task.Email, name, nil
	}
	return u.Email, name, nil
}

func (w *Worker) logger() *zerolog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

func (w *Worker) mailer() common.EmailSender {
	if w.Mail == nil {
		return common.NopEmailSender{}
	}
	return w.Mail
}
