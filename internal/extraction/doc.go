// Package extraction pulls a runner's gender, age and 5 km personal best out
// of free-form English or Polish text.
//
// Extraction runs in two tiers. PatternExtractor applies a fixed rule table
// to normalized text and needs no I/O. When it leaves a field empty,
// ModelExtractor asks a language model for the same three fields; its
// replies are memoized per (text, model). Coordinator runs both and merges
// them field by field, preferring the pattern result.
//
// Every present field of a Result is within range: age 15-90 and 5 km time
// 540-3600 seconds. Anything unparseable or out of range is simply absent.
package extraction
