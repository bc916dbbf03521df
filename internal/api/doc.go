/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package api contains the HTTP endpoints of the demo service.
//
// Handlers return an error instead of writing failures themselves.
// Adapter translates returned errors into problem details at the HTTP boundary:
//   - *StatusError responds with its status code;
//   - *restapi.MalformedRequestError responds with the status code of the malformed request;
//   - *outputcache.EvictionError and *FaultError (and any other error) respond with 500.
package api
