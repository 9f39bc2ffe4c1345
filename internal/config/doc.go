// Package config provides configuration structures and utilities for wordspider.
// It defines the crawl target and scope, text normalization, output files,
// fetcher politeness settings, report preferences and the optional Tor
// transport, together with the YAML profile file.
package config
