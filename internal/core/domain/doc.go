// Package domain contains the core business entities and rules for the
// AnswerCart knowledge base. It has no dependencies on adapters or
// infrastructure - all types here are plain data with attached behaviour.
package domain
