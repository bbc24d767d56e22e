package store

// AppendEventLog appends an accepted device event to the append-only log.
func (s *Store) AppendEventLog(e *EventLogEntry) error {
	if e.ID == "" {
		e.ID = GenerateID("evt")
	}
	return s.db.Create(e).Error
}

// ListEventLogForDevice returns a device's event log entries, oldest first,
// preserving the per-device monotonic ordering required by the concurrency
// model.
func (s *Store) ListEventLogForDevice(deviceID string, limit int) ([]EventLogEntry, error) {
	q := s.db.Where("device_id = ?", deviceID).Order("processed_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []EventLogEntry
	err := q.Find(&entries).Error
	return entries, err
}
