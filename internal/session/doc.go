// Package session runs recipes for a chat view.
//
// An Orchestrator owns one view's transcript and its busy/idle state machine.
// ExecuteRecipe resolves a recipe, lets it build an interaction, optionally
// gathers plugin context, assembles a token-budgeted prompt and streams the
// model's answer through a fresh multiplexer into the transcript:
//
//	o := session.New(session.Options{
//		Transport: transport,
//		Recipes:   recipe.Builtins(),
//		History:   history.NewStore(backend),
//		Observer:  event.NewBusObserver(bus, "view-1"),
//	})
//	defer o.Close()
//	if err := o.Init(ctx); err != nil { ... }
//	err := o.SubmitHumanMessage(ctx, "how does the router work?")
//
// Only one recipe runs at a time; a second ExecuteRecipe before the first
// finishes fails with ErrRecipeInProgress. Completion, errors and
// AbortCompletion all end in the same routine that returns the session to
// idle, persists the chat to the shared history store and lets the idle
// scheduler run deferred work.
//
// Streaming errors are classified: aborts are dropped silently, connectivity
// errors are replaced by NetworkErrorText, and client-error statuses also
// trigger re-authentication.
package session
