// Package retrieval ranks an owner's links and notes against a free-text query.
//
// A query is first parsed into a QueryIntent: date, folder, tag and type
// phrases become filters and the rest become search terms. Terms are
// expanded with a small synonym table and scored per field with a fuzzy
// similarity that tolerates typos. When a query embedding is supplied, items
// and their chunks are also scored by cosine similarity, and both signals are
// blended with configurable weights.
//
// The engine holds no state and is safe for concurrent use.
package retrieval
