/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package middleware contains HTTP middlewares of the demo service:
// request id, logging, metrics, panic recovery, request body limiting, rate limiting and output caching.
package middleware
