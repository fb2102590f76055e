// Package domain contains the core business entities and rules for Parley.
// It has no dependencies on other packages and defines the vocabulary shared
// by services, ports, and adapters: conversations, tools, knowledge
// repositories, and vector documents.
package domain
