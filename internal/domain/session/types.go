package session

import (
	"errors"
	"time"
)

// KeyPrefix namespaces snapshot records in the coordinator.
const KeyPrefix = "session-"

// ErrUnknownPartition is returned for partitions that are not tracked.
var ErrUnknownPartition = errors.New("session: unknown partition")

// Key returns the storage key for a partition.
func Key(partition string) string {
	return KeyPrefix + partition
}

// Info describes the service page living in a partition.
type Info struct {
	Partition   string `json:"partition" binding:"required"`
	ServiceName string `json:"serviceName"`
	ServiceType string `json:"serviceType"`
	URL         string `json:"url"`
}

// Record is the persisted snapshot of a session.
type Record struct {
	Partition   string `json:"partition"`
	ServiceName string `json:"serviceName"`
	ServiceType string `json:"serviceType"`
	// LastAccessed is milliseconds since the Unix epoch.
	LastAccessed int64  `json:"lastAccessed"`
	URL          string `json:"url"`
}

// Accessed returns LastAccessed as a time.
func (r Record) Accessed() time.Time {
	return time.UnixMilli(r.LastAccessed)
}

// Stats summarizes tracker activity.
type Stats struct {
	Active    int        `json:"active"`
	Saved     int64      `json:"saved"`
	Failed    int64      `json:"failed"`
	LastSaved *time.Time `json:"last_saved,omitempty"`
}
