// Package auth provides session and remember-cookie based authentication
// for instance-scoped community applications.
//
// The package resolves a per-request identity from two sources, in order:
// a server-side session (slots for a regular user and an administrator,
// which are independent and may both be populated), and a long-lived
// remember cookie that can re-establish a user session without
// credentials. Administrators can only authenticate through the session.
//
// Resolution results are cached on a per-request Scope, which replaces
// any process-global "current identity" state. HTTP plumbing is built on
// go-router so the package works with any supported engine.
package auth
