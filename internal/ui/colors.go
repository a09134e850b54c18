// Package ui provides [lipgloss] styling for CLI output.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// interface Painter defines coloring text with [lipgloss] styles
type Painter interface {
	On(string, lipgloss.Color) string // Sets background color
	As(string, lipgloss.Color) string // Sets foreground color
}

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// Title renders s in the palette's title style.
func (p *Palette) Title(s string) string { return p.title.Render(s) }

// OK renders s in the palette's success style.
func (p *Palette) OK(s string) string { return p.ok.Render(s) }

// Err renders s in the palette's error style.
func (p *Palette) Err(s string) string { return p.err.Render(s) }

// Warn renders s in the palette's warning style.
func (p *Palette) Warn(s string) string { return p.warn.Render(s) }

// Help renders s in the palette's help style.
func (p *Palette) Help(s string) string { return p.help.Render(s) }
