// Package cliui implements the interactive terminal collaborators the
// rest of the tool depends on only through narrow interfaces (§1):
// Prompter for yes/no and choice prompts, Renderer for styled output,
// and ProgressSink for long-running-step indicators. Default
// implementations use the teacher's own terminal-UI stack
// (charmbracelet/huh, lipgloss, bubbles).
package cliui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Prompter is the narrow interactive-prompt surface the orchestrator
// and Recovery Manager depend on.
type Prompter interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
	Select(ctx context.Context, title string, options []string) (string, error)
	Input(ctx context.Context, title, placeholder string) (string, error)
}

// HuhPrompter is the default Prompter, grounded on the teacher's
// internal/commands.Switch use of huh.NewSelect.
type HuhPrompter struct{}

// NewHuhPrompter builds the default huh-backed Prompter.
func NewHuhPrompter() *HuhPrompter { return &HuhPrompter{} }

// Confirm implements Prompter and recovery.Confirmer.
func (HuhPrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(prompt).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err != nil {
		return false, fmt.Errorf("prompt cancelled: %w", err)
	}
	return ok, nil
}

// Select implements Prompter.
func (HuhPrompter) Select(ctx context.Context, title string, options []string) (string, error) {
	huhOptions := make([]huh.Option[string], len(options))
	for i, opt := range options {
		huhOptions[i] = huh.NewOption(opt, opt)
	}
	var selected string
	err := huh.NewSelect[string]().
		Title(title).
		Options(huhOptions...).
		Value(&selected).
		Run()
	if err != nil {
		return "", fmt.Errorf("selection cancelled: %w", err)
	}
	return selected, nil
}

// Input implements Prompter.
func (HuhPrompter) Input(ctx context.Context, title, placeholder string) (string, error) {
	var value string
	err := huh.NewInput().
		Title(title).
		Placeholder(placeholder).
		Value(&value).
		Run()
	if err != nil {
		return "", fmt.Errorf("input cancelled: %w", err)
	}
	return value, nil
}

// Renderer styles phase output for the terminal.
type Renderer interface {
	Success(msg string) string
	Failure(msg string) string
	Warn(msg string) string
	Info(msg string) string
	Heading(msg string) string
}

// LipglossRenderer is the default Renderer, grounded on the teacher's
// internal/tui adaptive-color style definitions.
type LipglossRenderer struct {
	success lipgloss.Style
	failure lipgloss.Style
	warn    lipgloss.Style
	info    lipgloss.Style
	heading lipgloss.Style
}

// NewLipglossRenderer builds the default lipgloss-backed Renderer.
func NewLipglossRenderer() *LipglossRenderer {
	return &LipglossRenderer{
		success: lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#116329", Dark: "#3fb950"}).Bold(true),
		failure: lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#cf222e", Dark: "#f85149"}).Bold(true),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9a6700", Dark: "#d29922"}),
		info:    lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#24292f", Dark: "#e6edf3"}),
		heading: lipgloss.NewStyle().Bold(true).Underline(true),
	}
}

func (r *LipglossRenderer) Success(msg string) string { return r.success.Render("✓ " + msg) }
func (r *LipglossRenderer) Failure(msg string) string { return r.failure.Render("✗ " + msg) }
func (r *LipglossRenderer) Warn(msg string) string    { return r.warn.Render("! " + msg) }
func (r *LipglossRenderer) Info(msg string) string    { return r.info.Render(msg) }
func (r *LipglossRenderer) Heading(msg string) string { return r.heading.Render(msg) }
