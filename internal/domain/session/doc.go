// Package session keeps a persisted snapshot of every embedded service
// session.
//
// Each registered partition is saved as session-<partition> with its
// service name and type, last access time and current URL. Saves happen
// on a fixed interval, when the partition is unregistered and once more
// when the tracker is closed.
//
// Example Usage:
//
//	tracker := session.NewTracker(coordinator, 30*time.Second, logger)
//	tracker.Register(session.Info{Partition: "slack-1", ServiceName: "Slack", ServiceType: "slack"})
//	_ = tracker.Touch("slack-1", "https://app.slack.com/client")
//	defer tracker.Close()
package session
