// Package ravel extracts flat key/value context fragments from tagged struct
// fields and merges them into a long-lived [Context]. It is the inverse
// direction of mapping packages like encoding/json: data flows out of
// objects into a context, and only comes back out one typed value at a time.
//
// Extraction is driven by directives declared under the `ravel` struct tag.
// [Extractor.Extract] walks the tagged fields of a struct into a raw
// fragment, [Extractor.MergeAll] normalizes that fragment into storage form
// inside a Context, and [Decode] or [Lookup] coerce stored values back into
// typed Go values through a JSON [Codec].
package ravel
