package service

import (
	"context"
	"strings"

	"github.com/mmeshcher/engagemart/internal/model"
	"github.com/mmeshcher/engagemart/internal/repository"
)

func validNotificationType(t model.NotificationType) bool {
	switch t {
	case model.NotificationInfo, model.NotificationSuccess, model.NotificationWarning, model.NotificationError:
		return true
	}
	return false
}

// notify создаёт уведомление в рамках транзакции tx.
func (s *Service) notify(ctx context.Context, tx repository.Tx, userID string, typ model.NotificationType, title, message string) error {
	return tx.CreateNotification(ctx, &model.Notification{
		ID:        newID(),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		CreatedAt: s.now(),
	})
}

// Notify отправляет уведомление пользователю или всем (model.BroadcastUserID).
func (s *Service) Notify(ctx context.Context, userID string, typ model.NotificationType, title, message string) error {
	if !validNotificationType(typ) {
		return invalid("unknown notification type %q", typ)
	}
	if strings.TrimSpace(title) == "" {
		return invalid("notification title is required")
	}
	return s.withTx(ctx, func(tx repository.Tx) error {
		if userID != model.BroadcastUserID {
			if _, err := tx.GetUser(ctx, userID); err != nil {
				return err
			}
		}
		return s.notify(ctx, tx, userID, typ, title, message)
	})
}

// Broadcast отправляет уведомление всем пользователям от имени администратора.
func (s *Service) Broadcast(ctx context.Context, adminID string, typ model.NotificationType, title, message string) error {
	if typ == "" {
		typ = model.NotificationInfo
	}
	if !validNotificationType(typ) {
		return invalid("unknown notification type %q", typ)
	}
	if strings.TrimSpace(title) == "" {
		return invalid("notification title is required")
	}
	return s.withTx(ctx, func(tx repository.Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		return s.notify(ctx, tx, model.BroadcastUserID, typ, title, message)
	})
}

// ListNotifications возвращает адресные и широковещательные уведомления
// пользователя от новых к старым с признаком прочтения.
func (s *Service) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	var res []model.Notification
	err := s.withTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.ListNotifications(ctx, userID)
		return err
	})
	return res, err
}

// UnreadCount возвращает число непрочитанных уведомлений пользователя.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	list, err := s.ListNotifications(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, item := range list {
		if !item.Read {
			n++
		}
	}
	return n, nil
}

// MarkRead отмечает уведомление прочитанным. Повторный вызов ничего не меняет.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.withTx(ctx, func(tx repository.Tx) error {
		return tx.MarkNotificationRead(ctx, userID, notificationID)
	})
}
