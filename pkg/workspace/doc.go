// Package workspace manages the tenant boundary: workspace lifecycle,
// visibility transitions, and ACL-based sharing. Read denials are masked as
// not-found so unauthorized callers cannot probe for workspace existence.
package workspace
