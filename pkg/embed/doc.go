/*
Package embed turns chunk text into fixed-dimension vectors.

The provider call is wrapped in three layers, innermost first:

	OpenAIEmbedder   provider client with retry and backoff
	GuardedEmbedder  rate limit + circuit breaker + batch degrade
	CachedEmbedder   TTL cache keyed by (model, normalized text)

A deterministic FakeEmbedder replaces the provider in tests and when the
service runs with FAKE_EMBEDDINGS set.
*/
package embed
