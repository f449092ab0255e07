// Package llm defines the provider contract for chat completion
// backends and the wire types shared by synchronous and streaming
// calls. Concrete adapters live under llm/providers.
package llm
