// Package analysis simulates the JVM operand stack over a method's bytecode.
// It records the symbolic stack before and after every reachable
// instruction, resolves which declared local variable a value came from and
// reconstructs call-site arguments, including unpacked varargs arrays.
package analysis

// Constants for analysis operations
const (
	// MaxTrackedArrayLength is the largest constant-length array whose
	// elements are remembered individually. Longer arrays push an
	// untracked value.
	MaxTrackedArrayLength = 255

	// listingWidth pads the instruction column of a frame listing.
	listingWidth = 32
)
