// Package static implements the single-threaded static file server — the
// "static" launch variant.
//
// It reproduces the behavior of a generic built-in directory server:
// every file under the serving root is readable over plain HTTP, with
// directory listings, no TLS, no access control, and strictly serialized
// request handling — one request at a time, so a slow client stalls all
// others. The serialization is deliberate fidelity to the serving model
// this variant replaces, not an oversight.
package static
