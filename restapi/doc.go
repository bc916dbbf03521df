/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package restapi contains helpers for reading REST API requests and writing responses,
// including RFC 9457 problem details for failed requests.
package restapi
