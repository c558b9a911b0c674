// Package serialize converts arbitrary Go values into a JSON-safe tree.
//
// Conversion is total: values that cannot be represented are replaced with a
// bounded placeholder and reported as a Fallback instead of failing.
//
//	[circular]               a pointer, map or slice that refers back to itself
//	[max depth]              nesting deeper than Options.MaxDepth
//	[invalid number]         NaN or ±Inf
//	[unserializable: <type>] channels, funcs, complex numbers, unsafe pointers
//	[marshal error: <type>]  a json.Marshaler or TextMarshaler that failed or panicked
//
// Strings longer than Options.MaxStringLen are cut on a rune boundary and
// suffixed with "…[truncated]". Invalid UTF-8 is replaced with U+FFFD.
package serialize
