/*
Package policy implements the workspace authorization decision.

The policy is pure: it receives the principal, the workspace row, and the ACL
member set, and returns a boolean. It never touches the database. Callers are
responsible for masking a read denial as a not-found condition so that
unauthorized principals cannot learn a workspace exists.
*/
package policy
