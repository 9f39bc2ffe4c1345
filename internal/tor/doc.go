// Package tor routes crawls through the Tor network.
//
// A Client wraps a SOCKS5 dialer from golang.org/x/net/proxy and hands out
// http.Clients whose connections go through it. EmbeddedTor starts a private
// tor daemon with tornago when no external proxy is available. The package
// also validates v3 .onion host names so that a mistyped target fails
// before any request is sent.
package tor
