package inmemdb

import (
	"context"
	"sort"

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

func copyNotification(ntf notification.Notification) notification.Notification {
	if ntf.Data != nil {
		data := make(map[string]interface{}, len(ntf.Data))
		for k, v := range ntf.Data {
			data[k] = v
		}
		ntf.Data = data
	}
	return ntf
}

func (repo *notificationRepository) CreateNotification(_ context.Context, ntf notification.Notification) (notification.Notification, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.notifications[ntf.ID] = copyNotification(ntf)
	return ntf, nil
}

func (repo *notificationRepository) ListNotifications(_ context.Context, recipientID string) ([]notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	list := make([]notification.Notification, 0)
	for _, ntf := range repo.db.notifications {
		if ntf.RecipientID == recipientID {
			list = append(list, copyNotification(ntf))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Timestamp.After(list[j].Timestamp) })
	return list, nil
}

func (repo *notificationRepository) GetNotification(_ context.Context, id string) (notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if ntf, ok := repo.db.notifications[id]; ok {
		return copyNotification(ntf), nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) UpdateNotification(_ context.Context, ntf notification.Notification) (notification.Notification, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.notifications[ntf.ID]; !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	repo.db.notifications[ntf.ID] = copyNotification(ntf)
	return ntf, nil
}

func (repo *notificationRepository) MarkAllRead(_ context.Context, recipientID string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for id, ntf := range repo.db.notifications {
		if ntf.RecipientID == recipientID && ntf.Unread {
			ntf.Unread = false
			repo.db.notifications[id] = ntf
			n++
		}
	}
	return n, nil
}

func toRecipient(usr user.User) notification.Recipient {
	return notification.Recipient{ID: usr.ID, Username: usr.Username, Name: usr.Name, Email: usr.Email}
}

func (repo *notificationRepository) GetRecipient(_ context.Context, userID string) (notification.Recipient, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if usr, ok := repo.db.users[userID]; ok {
		return toRecipient(usr), nil
	}
	return notification.Recipient{}, user.ErrNotFound
}

func (repo *notificationRepository) ListCourseEnrollees(_ context.Context, courseID string) ([]notification.Recipient, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rcpts := make([]notification.Recipient, 0)
	for _, enr := range repo.db.enrollments {
		if enr.CourseID != courseID {
			continue
		}
		if usr, ok := repo.db.users[enr.UserID]; ok {
			rcpts = append(rcpts, toRecipient(usr))
		}
	}
	sort.Slice(rcpts, func(i, j int) bool { return rcpts[i].Email < rcpts[j].Email })
	return rcpts, nil
}
