package vector

import "errors"

var (
	// ErrNotFound is returned when a document is not found in the vector store.
	ErrNotFound = errors.New("document not found")

	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")

	// ErrConfiguration is returned when index parameters are invalid.
	ErrConfiguration = errors.New("invalid index configuration")

	// ErrDimension is returned when an embedding does not match the
	// dimensionality of the vectors already stored.
	ErrDimension = errors.New("embedding dimension mismatch")

	// ErrUnsupported is returned by drivers that do not implement an
	// optional operation.
	ErrUnsupported = errors.New("operation not supported")
)
