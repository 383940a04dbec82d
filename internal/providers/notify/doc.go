// Package notify implements notification sinks for the notification
// router.
//
//   - UI broadcasts notifications and UI events to connected render clients.
//   - WebPush delivers to browsers through their push services (VAPID).
//   - Webhook posts JSON to an HTTP endpoint.
//   - Multi fans a notification out to several sinks.
package notify
