package main

import "github.com/charmbracelet/lipgloss"

// Palette mirrors the teacher's internal/tui/styles.go role-color
// convention (user vs assistant vs tool vs error gets its own hue) but
// reduced to what the REPL in this package actually renders.
var (
	userIconStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))
	asstIconStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	thinkingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Faint(true)
	toolNameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("147")).Bold(true)
	toolOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	toolFailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	errorLineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("183"))
)
