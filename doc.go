// Package ergokit is an ergonomic client layer for chat-based language
// models. It composes a provider transport (OpenAI, Anthropic, or
// Ollama) with an interceptor and middleware pipeline, streaming
// aggregation, a tool-calling conversation loop, and optional session
// persistence.
//
// The quickest path is a one-shot completion:
//
//	transport, _ := anthropic.New(apiKey, "claude-sonnet-4-20250514", logger)
//	client := ergokit.New(transport, "claude-sonnet-4-20250514")
//	answer, err := client.Complete(ctx, "what is 2+2?")
//
// Sessions carry history and run registered tools until the model
// produces a final answer:
//
//	session := client.NewSession(ergokit.WithSystemPrompt("be terse"))
//	answer, err := session.Send(ctx, "list the files in /tmp")
package ergokit
