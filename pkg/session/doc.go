// Package session manages the lifetime of the remote browser endpoint.
//
// The Manager owns the single Handle of the process. It attaches to a
// browser already listening on the well-known control port, or creates one
// through an ordered list of strategies. Every created browser listens on that
// same port, which is what lets a restarted process find it again.
//
// The LoginGate waits for the operator to authenticate by polling the page
// location, the Reporter answers status queries without ever creating a
// browser, and the Store keeps a small record file as a cross-process hint.
package session
