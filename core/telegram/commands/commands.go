// Package commands defines the metadata attached to a bot command.
package commands

import tele "gopkg.in/telebot.v4"

// Command is a bot command as kept in the registry.
type Command struct {
	Handler     tele.HandlerFunc
	Description string // shown in the Telegram command menu

	// Restricted commands run only for the admin or inside the report chat.
	Restricted bool
	// Hidden commands work but are left out of the menu.
	Hidden  bool
	Aliases []string
}
