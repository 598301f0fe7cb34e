// Package server provides the HTTP API for recipechat.
//
// A client creates a chat view, which is one session orchestrator with its
// own transcript, and drives it over REST. Answers are not returned by the
// request that starts them: they stream as transcript.updated events on the
// SSE endpoint.
//
// # API Endpoints
//
//   - POST /view, GET /view: create and list chat views
//   - DELETE /view/{viewID}: close a view, aborting its running turn
//   - GET /view/{viewID}/transcript: the current transcript
//   - POST /view/{viewID}/message: submit human input or a slash command
//   - POST /view/{viewID}/recipe/{recipeID}: run a recipe
//   - POST /view/{viewID}/abort, /reset, /restore: turn and chat lifecycle
//   - PUT /view/{viewID}/editor: set the editor selection recipes read
//   - POST /view/{viewID}/suggestions: refresh follow-up suggestions when idle
//   - DELETE /view/{viewID}/history[/{chatID}]: remove stored chats
//   - GET /history, /recipe, /plugin, /config: shared state
//   - GET /event[?view=id]: Server-Sent Events
//
// # Event Streaming
//
// Events come from the watermill feed of the event bus, which does not
// preserve publish order. Every event carries the bus sequence number and the
// stream drops a snapshot event (transcript, history, suggestions) that is
// older than one it already sent for the same view.
//
// # Errors
//
// Errors are JSON objects {"error": {"code", "message"}}. A recipe requested
// while the view is busy is a 409 with code BUSY; restoring an unknown chat is
// a 404; a mistyped slash command is a 400 carrying a hint.
package server
