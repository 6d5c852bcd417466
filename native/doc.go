// Package native edits the machine code of compiled Go functions in the
// running process.
//
// On amd64, Decode turns a function's code into a splice.Sequence whose
// relative branches are labels, and Assemble encodes an edited sequence
// for a new address. Accessor and Registry plug this into a splice.Driver:
// the patched body is placed in an executable arena and the function's
// entry jumps to it.
//
// Redefine and Original replace a whole function and call the code it had
// before. They also work on arm64.
//
// Limitations:
//   - Relies on internal runtime structures that can change with any Go
//     release
//   - Calls the compiler inlined are not affected
//   - Code running from the arena has no runtime metadata, so it must not
//     grow the stack or be preempted in a way that needs a traceback
package native
