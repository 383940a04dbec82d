/*
Package activity detects unread activity in embedded service pages.

The host reports page snapshots (title and optionally markup) for each
registered session. A Detector compares every snapshot with the session's
baseline:

  - Heuristic treats a changed title with an unread marker as activity,
    otherwise a rise in badge counters found by CSS selector or XPath.
  - Script delegates the decision to a sandboxed JavaScript function.

Signals are queued per session and drained one at a time, spaced by a rate
limiter, into the Hub's merged Events stream. Marking a session visible
drops everything still queued for it.

	hub := activity.NewHub(activity.Config{}, nil, logger)
	defer hub.Close()
	hub.Register(activity.Session{ID: "persist:slack-1", Name: "Slack", Type: "slack"})
	go router.Consume(ctx, hub.Requests(ctx))
*/
package activity
