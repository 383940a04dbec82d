/*
Package http exposes the backend to the shell over gin.

Routes are grouped by component:

	/store/:key                     storage coordinator (load, save, delete, clear)
	/notifications, /window/:event  notification router
	/sessions/:partition            session tracker and activity monitor
	/services                       service catalog and UI relays
	/push                           Web Push subscriptions
	/logs                           UI log forwarding
	/health, /metrics/summary       component status

Handlers.Dispatch serves the same notification, window and page snapshot
operations for messages arriving over the /stream websocket.

Backend failures never turn into HTTP errors: the coordinator answers
ok=false and the router shown=false. 400 is reserved for malformed
requests, 404 for unknown sessions, services and disabled push.
*/
package http
