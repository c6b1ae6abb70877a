// Package value implements the bridge's generic tagged value.
//
// A Value is one of: none, bool, int (32-bit), long (64-bit), float (32-bit),
// double (64-bit), string, array of Value, ordered string-keyed map of Value,
// or an opaque object handle. The marshal package converts between Values
// and host runtime objects.
package value
