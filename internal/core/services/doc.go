// Package services implements the core business logic: the ingestion
// pipeline that turns uploaded files into searchable vectors, the retrieval
// mode selector, and the conversation orchestrator that drives the
// tool-calling completion loop.
package services
