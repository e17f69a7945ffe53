package main

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	keyword   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Render
	paragraph = lipgloss.NewStyle().Width(78).Padding(0, 0, 0, 2).Render

	subtle    = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	highlight = lipgloss.AdaptiveColor{Light: "#FFFDF5", Dark: "#FFFDF5"}

	labelStyle    = lipgloss.NewStyle().Foreground(subtle)
	wordStyle     = lipgloss.NewStyle().Foreground(highlight).Background(lipgloss.Color("#F25D94")).Padding(0, 1)
	sentenceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EE6FF8"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB454"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
)
