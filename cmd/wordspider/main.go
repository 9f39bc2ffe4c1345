// Package main provides the entry point for the wordspider CLI.
//
// wordspider crawls a website and builds a custom word list from its
// content, for password auditing and penetration testing. E-mail addresses
// and visited URLs can be written to their own lists.
//
// Usage:
//
//	wordspider crawl https://example.com
//	wordspider crawl -d 3 -s children -o words.txt example.com
//
// See --help for all available options.
package main

func main() {
	Execute()
}
