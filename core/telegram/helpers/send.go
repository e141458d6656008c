package helpers

import (
	tele "gopkg.in/telebot.v4"
)

// SendText sends raw text (no parse mode) to the current chat.
func SendText(c tele.Context, text string) error {
	return c.Send(text, &tele.SendOptions{DisableWebPagePreview: true})
}

// SendHTML sends text with HTML parse mode and link previews disabled.
func SendHTML(c tele.Context, text string) error {
	return c.Send(text, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	})
}

// ReplyHTML replies to the incoming message with HTML parse mode.
func ReplyHTML(c tele.Context, text string) error {
	return c.Reply(text, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	})
}
