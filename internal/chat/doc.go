// Package chat implements the chat completion flow: a model name and an ordered
// list of role/content messages posted as JSON.
package chat
