// Package handlers implements the HTTP handlers of the document QA API:
// document upload and lifecycle, question answering, chunk settings, index
// stats and health probes. Handlers translate between HTTP and the engine;
// all domain decisions live in the rag package.
package handlers
