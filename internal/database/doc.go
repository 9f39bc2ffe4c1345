// Package database keeps the crawl history of wordspider in SQLite.
//
// Every finished or interrupted crawl becomes a session identified by a
// UUID. A session row stores the JSON summary; its words, e-mail addresses
// and URLs are stored as entries so that two sessions of the same site can
// be diffed in SQL. The database file lives in the XDG data directory and
// uses the CGO-free modernc.org/sqlite driver.
package database
