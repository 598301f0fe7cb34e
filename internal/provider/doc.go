// Package provider adapts LLM backends to the chat transport used by sessions.
//
// Backends are built on the Eino framework: Anthropic Claude, OpenAI (and
// OpenAI-compatible servers) and Volcengine ARK. Each is registered in a
// Registry when its API key is configured:
//
//	registry, err := provider.InitializeProviders(ctx, cfg)
//	transport, err := registry.Transport()
//
// A Transport streams one reply per Chat call. Chunks arrive in order through
// Callbacks.OnChunk and the call ends with exactly one OnComplete or OnError:
//
//	cancel := transport.Chat(ctx, messages, provider.Callbacks{
//	    OnChunk:    func(text string) { buf.WriteString(text) },
//	    OnComplete: func() { done() },
//	    OnError:    func(err error, status int) { fail(err, status) },
//	})
//	defer cancel()
//
// Cancelling reports ErrAborted; IsAbortError, IsNetworkError and StatusCode
// classify failures for callers that treat them differently.
package provider
