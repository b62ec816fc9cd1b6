// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package cliui

import (
	"errors"
	"log"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultWidth = 20
	listHeight   = 14
)

var (
	titleStyle      = lipgloss.NewStyle().MarginLeft(2)
	paginationStyle = list.DefaultStyles().PaginationStyle.PaddingLeft(4)
	helpStyle       = list.DefaultStyles().HelpStyle.PaddingLeft(4).PaddingBottom(1)
)

// Select displays an interactive command-line menu with a given title and a
// list of options, returning the index and value of the chosen option, or an
// error when the user cancels.
func Select(title string, options []string) (int, string, error) {
	var items []list.Item
	for _, option := range options {
		items = append(items, item(option))
	}

	if len(items) == 0 {
		return -1, "", errors.New("no options provided")
	}

	l := list.New(items, itemDelegate{}, defaultWidth, listHeight)
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = titleStyle
	l.Styles.PaginationStyle = paginationStyle
	l.Styles.HelpStyle = helpStyle

	m := &model{
		list:  l,
		index: -1,
	}

	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatalf("error selecting from CLI menu: %v", err)
	}

	if m.quitting {
		return -1, "", errors.New("user cancelled")
	}

	return m.index, m.choice, nil
}

// Confirm presents a yes/no menu for a destructive action and reports
// whether the user chose to proceed. Cancelling counts as no.
func Confirm(title string) bool {
	_, choice, err := Select(title, []string{"no, abort", "yes, proceed"})
	if err != nil {
		return false
	}
	return choice == "yes, proceed"
}
