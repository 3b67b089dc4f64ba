// Package codec converts Go values to and from the serialized field values
// stored in entity hashes.
//
// The default codec writes canonical JSON: object keys in UTF-16 code unit
// order, no HTML escaping, strings kept exactly as given. Two values that are
// equal as JSON therefore always serialize to the same bytes, which is what
// the checked set compares when it decides whether a field changed.
//
// Values read back from the store are wrapped in Value, an explicit
// value-or-absent type: an absent field is distinct from an empty string, a
// zero and a JSON null.
package codec
