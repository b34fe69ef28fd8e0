// Package rag implements the retrieval-augmented query engine behind docqa:
// sentence-aware chunking, a dual vector+lexical index store kept consistent
// under concurrent queries and mutations, three retrieval strategies
// (lexical, dense, hypothesis-expanded), an LLM-driven strategy router, and a
// grounded answer synthesizer.
//
// The Engine type ties the pieces together and is the only entry point the
// HTTP layer needs.
package rag
