// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

// Package store persists notifications in BadgerDB so users who were
// offline when an event fired still see it in their notification list.
// Live socket delivery stays best-effort; the store is the durable
// record behind it.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tasklane/tasklane/internal/config"
	"github.com/tasklane/tasklane/internal/notify"
)

// Key prefix for BadgerDB storage
const notifKeyPrefix = "notif:"

// ErrNotificationNotFound is returned when a notification ID does not
// exist under the given user.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationStore is a BadgerDB-backed notification log keyed per
// user. Keys are "notif:<userID>:<id>" so one prefix scan lists a
// user's notifications.
type NotificationStore struct {
	db *badger.DB
}

// Open opens (or creates) the notification store. InMemory mode backs
// the store with badger's in-memory engine for tests and ephemeral
// deployments.
func Open(cfg config.StoreConfig) (*NotificationStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("store path is required unless in_memory is set")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open notification store: %w", err)
	}
	return &NotificationStore{db: db}, nil
}

// Close flushes and closes the underlying database.
func (s *NotificationStore) Close() error {
	return s.db.Close()
}

func notifKey(userID, id string) []byte {
	return []byte(notifKeyPrefix + userID + ":" + id)
}

// Append stores a notification for a user. A missing ID gets a UUID and
// a zero CreatedAt gets the current time; the stored record is returned
// through the pointer.
func (s *NotificationStore) Append(ctx context.Context, userID string, n *notify.Notification) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(notifKey(userID, n.ID), data); err != nil {
			return fmt.Errorf("set notification: %w", err)
		}
		return nil
	})
}

// ListByUser returns a user's notifications, newest first. A limit of
// zero or less returns everything.
func (s *NotificationStore) ListByUser(ctx context.Context, userID string, limit int) ([]notify.Notification, error) {
	var items []notify.Notification

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(notifKeyPrefix + userID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			var n notify.Notification
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			})
			if err != nil {
				continue // Skip records that no longer parse
			}
			items = append(items, n)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// MarkRead flags one notification as read.
func (s *NotificationStore) MarkRead(ctx context.Context, userID, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := notifKey(userID, id)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotificationNotFound
		}
		if err != nil {
			return fmt.Errorf("get notification: %w", err)
		}

		var n notify.Notification
		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &n)
		})
		if err != nil {
			return fmt.Errorf("unmarshal notification: %w", err)
		}

		if n.Read {
			return nil
		}
		n.Read = true

		data, err := json.Marshal(&n)
		if err != nil {
			return fmt.Errorf("marshal notification: %w", err)
		}
		return txn.Set(key, data)
	})
}

// Delete removes one notification. Deleting an absent record is a
// no-op.
func (s *NotificationStore) Delete(ctx context.Context, userID, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(notifKey(userID, id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete notification: %w", err)
		}
		return nil
	})
}

// CountUnread returns the number of unread notifications for a user.
func (s *NotificationStore) CountUnread(ctx context.Context, userID string) (int, error) {
	count := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(notifKeyPrefix + userID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var n notify.Notification
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			})
			if err != nil {
				continue
			}
			if !n.Read {
				count++
			}
		}
		return nil
	})

	return count, err
}
