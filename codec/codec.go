// Package codec provides the serializers rollcache stores values with.
//
// Codecs MUST be deterministic and order-independent for structured values:
// logically-equal values must encode to byte-identical output. The ordered
// store treats member bytes as identity, so a codec that encodes the same
// object two different ways would duplicate items in non-unique caches and
// break last-write-wins replacement in unique ones. Every codec in this
// package satisfies the contract (JSON and msgpack sort map keys; CBOR uses
// RFC 8949 Core Deterministic encoding; protobuf marshals deterministically).
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
