// Package openai implements the ai capabilities with langchaingo against
// OpenAI or any OpenAI-compatible server (Ollama, vLLM, LM Studio).
package openai
