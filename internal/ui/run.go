// Package ui is a terminal walk-through of a museum: a top-down map driven
// by the navigation controller and physics world, with exhibit panels and
// inline editing for the owner.
package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run fetches username's museum from src and blocks until the viewer quits.
func Run(ctx context.Context, src Source, username string) error {
	doc, err := src.Profile(ctx, username)
	if err != nil {
		return fmt.Errorf("loading museum %q: %w", username, err)
	}
	m := newModel(ctx, src, username, doc)
	program := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	_, err = program.Run()
	return err
}
