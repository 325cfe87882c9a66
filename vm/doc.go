// Package vm defines the dynamic values handled by mpdump.
//
// Values form a closed set: Null, Integer, Real, String, Array, Program,
// Object, Function and Other. Arrays, programs and objects are mutable
// containers compared by identity, so a value graph may share or contain
// itself. Other stands in for any value kind the renderers do not model.
package vm
