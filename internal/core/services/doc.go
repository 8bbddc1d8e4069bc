// Package services contains the core pipeline logic: embedding and
// generation gateways, retrieval reranking, context assembly, safety
// screening, and the indexing and answer orchestrators. Services depend
// only on domain types and ports, never on concrete adapters.
package services
