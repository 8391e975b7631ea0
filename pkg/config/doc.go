/*
Package config loads Quill's runtime configuration from the environment.

Configuration is read once at startup (optionally seeded from a .env file via
godotenv), validated, and frozen into a Config value that is passed explicitly
to every component. No package reads the environment after Load returns, and
there is no ambient settings singleton.

When APP_ENV=production, Load fails fast on insecure defaults:
METRICS_REQUIRE_AUTH=false aborts startup rather than silently running with an
open scrape endpoint.
*/
package config
