//go:build audiodebug

// This file is conditionally compiled when the build tag 'audiodebug' is set
// to include additional debug and trace statements in the loopback worker.
//
// Tracing runs on the audio path, so for production builds it is removed during
// compilation.

package audio

const addDebugTrace = true
