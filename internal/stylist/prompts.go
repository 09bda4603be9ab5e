package stylist

import "fmt"

const (
	temperature = 0.7
	topP        = 0.9
	maxTokens   = 120
)

const systemPrompt = "You are a professional vehicle safety complaint assistant. " +
	"Rewrite the assistant's message to be natural and friendly while keeping " +
	"ALL important information intact. Be concise and professional. " +
	"Keep responses under 80 words. Do not add extra questions."

func userPrompt(userInput, text string) string {
	return fmt.Sprintf("User said: '%s'\n\nRewrite naturally: %s", userInput, text)
}
