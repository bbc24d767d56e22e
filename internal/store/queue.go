package store

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const notificationQueueName = "notifications"

// EnqueueNotification pushes a serialized notification record onto the
// badger-backed outbox for the notify drainer to pick up.
func (s *Store) EnqueueNotification(payload []byte) error {
	return s.badger.Update(func(txn *badger.Txn) error {
		key := fmt.Sprintf("queue:%s:%d", notificationQueueName, time.Now().UnixNano())
		return txn.Set([]byte(key), payload)
	})
}

// DequeueNotification pops the oldest queued notification, or
// ErrQueueEmpty if none are waiting.
func (s *Store) DequeueNotification() ([]byte, error) {
	var job []byte
	prefix := []byte("queue:" + notificationQueueName + ":")

	err := s.badger.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(prefix)
		if !it.ValidForPrefix(prefix) {
			return ErrQueueEmpty
		}

		item := it.Item()
		key := item.Key()
		if err := item.Value(func(v []byte) error {
			job = append([]byte{}, v...)
			return nil
		}); err != nil {
			return err
		}
		return txn.Delete(key)
	})

	return job, err
}

// ErrQueueEmpty is returned by DequeueNotification when the outbox has no
// pending entries.
var ErrQueueEmpty = fmt.Errorf("queue empty")

// MarkEventSeen records that an inbound device event id has been processed,
// for the duration of ttl, so a retried delivery within that window can be
// recognized and skipped by the correlator.
func (s *Store) MarkEventSeen(eventID string, ttl time.Duration) error {
	return s.badger.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte("seen:"+eventID), []byte{1}).WithTTL(ttl)
		return txn.SetEntry(e)
	})
}

// WasEventSeen reports whether an event id was already marked seen within
// its idempotency window.
func (s *Store) WasEventSeen(eventID string) (bool, error) {
	err := s.badger.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("seen:" + eventID))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
