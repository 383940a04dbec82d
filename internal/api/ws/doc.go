/*
Package ws implements the /stream websocket that connects the render
clients (the shell UI) to the backend.

Outbound, the Hub broadcasts UI events as

	{"type": "switch-to-service", "data": {"serviceId": "slack-1"}, "timestamp": 1700000000000}

and satisfies notify.Broadcaster, so the UI notification sink and the
router's window/service relays all flow through it.

Inbound, clients send {"type", "id", "data"}. "ping" is answered with
"pong" by the hub itself; every other type goes to the Dispatcher. A
dispatcher error comes back as an "error" message, and a non-nil result
as "<type>.result", both carrying the request id.

Each connection runs a write pump (which owns all writes and sends
keepalive pings) and a read pump (read limit, pong deadline). A client
that cannot keep up with broadcasts is disconnected rather than allowed
to stall the others.
*/
package ws
