package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/acadamier/backend/core/notification"
	"github.com/acadamier/backend/core/user"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db}
}

type notificationRow struct {
	ID          string    `db:"id"`
	RecipientID string    `db:"recipient_id"`
	Verb        string    `db:"verb"`
	Data        null.JSON `db:"data"`
	Link        string    `db:"link"`
	Unread      bool      `db:"unread"`
	Timestamp   time.Time `db:"timestamp"`
}

var notificationSelect = psql.Select("id", "recipient_id", "verb", "data", "link", "unread", `"timestamp"`).From("notifications")

func (r notificationRow) toNotification() (notification.Notification, error) {
	ntf := notification.Notification{
		ID:          r.ID,
		RecipientID: r.RecipientID,
		Verb:        r.Verb,
		Link:        r.Link,
		Unread:      r.Unread,
		Timestamp:   r.Timestamp.UTC(),
	}
	if r.Data.Valid {
		if err := r.Data.Unmarshal(&ntf.Data); err != nil {
			return notification.Notification{}, pkgerrors.Wrap(err, "decoding notification data")
		}
	}
	return ntf, nil
}

func encodeData(data map[string]interface{}) (null.JSON, error) {
	if data == nil {
		return null.JSON{}, nil
	}
	var j null.JSON
	if err := j.Marshal(data); err != nil {
		return null.JSON{}, pkgerrors.Wrap(err, "encoding notification data")
	}
	return j, nil
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, ntf notification.Notification) (notification.Notification, error) {
	data, err := encodeData(ntf.Data)
	if err != nil {
		return notification.Notification{}, err
	}
	b := psql.Insert("notifications").
		Columns("id", "recipient_id", "verb", "data", "link", "unread", `"timestamp"`).
		Values(ntf.ID, ntf.RecipientID, ntf.Verb, data, ntf.Link, ntf.Unread, ntf.Timestamp)
	if _, err = exec(ctx, repo.db, b); err != nil {
		return notification.Notification{}, err
	}
	return ntf, nil
}

func (repo *notificationRepository) ListNotifications(ctx context.Context, recipientID string) ([]notification.Notification, error) {
	var rows []notificationRow
	if err := selectRows(ctx, repo.db, &rows, notificationSelect.Where(sq.Eq{"recipient_id": recipientID}).OrderBy(`"timestamp" DESC`)); err != nil {
		return nil, err
	}
	list := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		ntf, err := r.toNotification()
		if err != nil {
			return nil, err
		}
		list = append(list, ntf)
	}
	return list, nil
}

func (repo *notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	var r notificationRow
	if err := get(ctx, repo.db, &r, notificationSelect.Where(sq.Eq{"id": id})); err != nil {
		return notification.Notification{}, trapNoRowsErr(err, notification.ErrNotFound)
	}
	return r.toNotification()
}

func (repo *notificationRepository) UpdateNotification(ctx context.Context, ntf notification.Notification) (notification.Notification, error) {
	b := psql.Update("notifications").Set("unread", ntf.Unread).Where(sq.Eq{"id": ntf.ID})
	if err := execOne(ctx, repo.db, b, notification.ErrNotFound); err != nil {
		return notification.Notification{}, err
	}
	return ntf, nil
}

func (repo *notificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	b := psql.Update("notifications").Set("unread", false).Where(sq.Eq{"recipient_id": recipientID, "unread": true})
	n, err := exec(ctx, repo.db, b)
	return int(n), err
}

type recipientRow struct {
	ID       string `db:"id"`
	Username string `db:"username"`
	Name     string `db:"name"`
	Email    string `db:"email"`
}

var recipientColumns = []string{"u.id", "COALESCE(u.username, '') AS username", "u.name", "u.email"}

func (repo *notificationRepository) GetRecipient(ctx context.Context, userID string) (notification.Recipient, error) {
	var r recipientRow
	if err := get(ctx, repo.db, &r, psql.Select(recipientColumns...).From("users u").Where(sq.Eq{"u.id": userID})); err != nil {
		return notification.Recipient{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return notification.Recipient(r), nil
}

func (repo *notificationRepository) ListCourseEnrollees(ctx context.Context, courseID string) ([]notification.Recipient, error) {
	var rows []recipientRow
	b := psql.Select(recipientColumns...).
		From("users u").
		Join("enrollments e ON e.user_id = u.id").
		Where(sq.Eq{"e.course_id": courseID}).
		OrderBy("u.email")
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, err
	}
	rcpts := make([]notification.Recipient, len(rows))
	for i, r := range rows {
		rcpts[i] = notification.Recipient(r)
	}
	return rcpts, nil
}
