/*
Package metrics exposes Prometheus collectors and health state for Quill.

Collectors are declared as package-level variables and registered once in
init(). They are observed only; no code path reads a counter back to make a
decision. The package also tracks per-component health used by the /healthz
and /readyz endpoints: the API process registers "postgres" and "redis" after
connecting, and readiness fails until both are healthy.

Counter names the rest of the service relies on:

	quill_dedup_hits_total              idempotent re-uploads
	quill_policy_refusal_total          injection-refused queries
	quill_retrieval_fallback_total      degraded retrievals, by stage
	quill_answer_without_sources_total  answers with empty context
	quill_ingest_failures_total         jobs that ended FAILED
*/
package metrics
