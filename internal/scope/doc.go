// Package scope decides which hostnames belong to a crawl.
//
// A Matcher is built once from the normalized start URL and a Strategy and
// is then consulted for every candidate link before it enters the frontier.
//
//   - Exact accepts only the start host.
//   - Children accepts the start host and its subdomains.
//   - All accepts every host under the registrable domain (eTLD+1) of the
//     start host, including siblings and ancestors of the start host.
//
// Matching always happens on dot-delimited label boundaries, so
// "xexample.com" never matches "example.com".
package scope
