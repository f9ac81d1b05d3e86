// Package artifact stages conversion output and publishes it atomically.
//
// File and Dir write into a hidden sibling of the final path and rename it
// into place on Publish, so a partially written artifact is never visible
// at its final location. Discard removes the staged data instead.
//
// Stream is an in-memory pipe for stream targets: the producer appends
// bytes while the consumer reads what is already there, pulling the
// producer forward when the buffer runs dry.
//
// Multi-part formats write their parts through a Container: a Zip over any
// writer, or a Dir of loose files.
package artifact
