package main

// exitCode is deepfind's own exit-status taxonomy: 0 on success, 1 on a
// configuration error (bad argv, bad config file, bad expression
// syntax), 2 on a recoverable traversal error. Unlike deepgrep, find(1)
// has no "nothing matched" status: whether a predicate matched any node
// does not affect the exit code.
type exitCode int

const (
	exitSuccess        exitCode = 0
	exitConfigError    exitCode = 1
	exitTraversalError exitCode = 2
)
