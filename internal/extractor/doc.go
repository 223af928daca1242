// Package extractor turns fetched pages into structured content.
//
// Pages are classified by URL into tweets, videos, articles and generic
// webpages. Each class has its own heuristics for the main text; metadata
// (title, description, favicon, site name, author, publish date) comes from
// the usual meta tags with sensible fallbacks.
//
// Non-HTML responses are handled too: markdown is reduced to its readable
// text and titled by its first heading, plain text is cleaned and returned
// as-is, and anything else only gets a title derived from the URL.
package extractor
