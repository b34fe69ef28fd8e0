// Package api holds the HTTP surface of the document QA service. Handlers
// live in the handlers subpackage; routing and middleware are assembled in
// cmd/docqa.
package api
