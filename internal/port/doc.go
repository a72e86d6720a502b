// Package port implements PORT environment variable resolution and port
// availability scanning for the kakao-skill-sanity CLI.
//
// Every launch variant binds a TCP listener on 0.0.0.0 at a port supplied
// through the PORT environment variable. The gateway variant treats a
// missing PORT as a fatal configuration error, while the entrypoint and
// static variants fall back to 8080. Resolve implements exactly that
// contract; the Scanner verifies OS-level availability via net.Listen()
// before the process commits to a bind, so failures surface as clear
// configuration errors rather than opaque bind errors mid-start.
package port
