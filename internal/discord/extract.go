package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// ExtractMessageText flattens a message to plain text. Embedded messages
// concatenate each embed's title, description, and "name\nvalue" per field;
// plain messages pass their content through.
func ExtractMessageText(msg *discordgo.Message) string {
	if len(msg.Embeds) == 0 {
		return msg.Content
	}
	var parts []string
	for _, embed := range msg.Embeds {
		if embed.Title != "" {
			parts = append(parts, embed.Title)
		}
		if embed.Description != "" {
			parts = append(parts, embed.Description)
		}
		for _, field := range embed.Fields {
			parts = append(parts, field.Name+"\n"+field.Value)
		}
	}
	return strings.Join(parts, "\n")
}
