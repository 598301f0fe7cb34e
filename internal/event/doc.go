/*
Package event carries the notifications of chat sessions.

Each chat view owns a BusObserver that turns the orchestrator's observer
callbacks into events on a shared Bus:

  - transcript.updated: the transcript changed, possibly mid-stream
  - transcript.error: the transcript gained or lost an error entry
  - history.updated: the shared chat and input history changed
  - session.error: an error to show the user
  - suggestions.updated: new follow-up suggestions
  - plugins.updated: the enabled plugin list changed
  - config.reloaded: the configuration file changed on disk

# Delivery

Subscribe and SubscribeAll register direct subscribers. PublishSync calls
them in the publisher's goroutine, in order, so subscribers must return
quickly and never publish themselves:

	unsub := bus.Subscribe(event.TranscriptUpdated, func(e event.Event) {
		data := e.Data.(event.TranscriptUpdatedData)
		render(data.Messages)
	})
	defer unsub()

Every event is also mirrored as JSON to a watermill GoChannel topic. Feed
subscribes to it; feed delivery is concurrent, so consumers order events by
Seq and drop stale ones. The HTTP server streams the feed over SSE.
*/
package event
