package session

import "errors"

var (
	// ErrRecipeInProgress is returned when a recipe is started while another
	// one is still running in the same session.
	ErrRecipeInProgress = errors.New("cannot execute multiple recipes, wait for the current recipe to finish")

	// ErrNotIdle is returned by RunIdleRecipe while a recipe is running.
	ErrNotIdle = errors.New("not idle")

	// ErrSessionNotFound is returned when restoring an unknown chat.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnknownCommand is returned for a mistyped slash command.
	ErrUnknownCommand = errors.New("unknown command")
)
