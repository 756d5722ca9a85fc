// Package feed fetches, parses, and aggregates RSS 2.0 and Atom feeds.
//
// The parser is deliberately dependency free and tolerant: it scans for
// item/entry blocks with a small tag scanner instead of a conforming XML
// parser, so real-world feeds with broken markup still yield articles.
// Parsed articles are transient; nothing here touches storage beyond
// reading the feed registry.
package feed
