// Package provider defines the interface to external next-edit suggestion
// backends and ships two implementations: an HTTP backend speaking a
// JSON-lines protocol and an OpenAI chat-completion backend.
//
// A backend is stateless from the engine's point of view: it receives the
// document's current text, cursor position, and recent edit history across
// related documents, and returns an asynchronous sequence of edit
// proposals terminated by a typed completion reason. The engine consumes
// the first proposal synchronously and drains the rest in the background.
package provider
