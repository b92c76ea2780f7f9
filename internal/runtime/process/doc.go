// Package process provides the direct launch handle: an ordinary child process
// the supervisor owns, with its output streamed line by line.
//
// Full process-group termination is only guaranteed on Unix, where the handle
// places the child in its own process group and signals the whole group. On
// Windows the handle offers best-effort semantics: the interrupt and the final
// kill reach the direct child only, and grandchildren may outlive it.
package process
