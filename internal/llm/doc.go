// Package llm provides text-completion clients for the inference providers the
// audit and letter endpoints run on. It supports OpenAI, Anthropic and Gemini,
// with retry on transient transport failures and client-side rate limiting.
package llm
