/*
Package api implements Quill's HTTP surface.

Routing is chi with the usual middleware stack (request id, real IP,
structured request logging, panic recovery, CORS). Request bodies are
validated with go-playground/validator, and every error leaves the service
as an RFC 7807 application/problem+json body carrying a stable machine code.

	┌──────────────────── CLIENT ────────────────────┐
	│  X-User-ID set by the fronting auth proxy       │
	└───────────────────────┬────────────────────────┘
	                        │ HTTP/JSON, SSE
	┌───────────────────────▼────────────────────────┐
	│              chi router (pkg/api)               │
	│  withPrincipal: header -> user table -> ctx     │
	│  /v1/workspaces            workspace.Registry   │
	│  /v1/.../documents         document.Lifecycle   │
	│  /v1/.../answers[/stream]  answer.Generator     │
	│  /healthz /readyz /metrics                      │
	└────────────────────────────────────────────────┘

Identity verification happens upstream; withPrincipal only resolves the
X-User-ID header against the user table and rejects unknown or inactive
accounts. Authorization decisions stay in the domain packages, which is why
a denied read surfaces here as 404 rather than 403.

The streaming answer endpoint speaks server-sent events: one sources event,
zero or more token events, and exactly one terminal done or error event.
Errors that occur before the first byte are ordinary problem responses.
*/
package api
