package main

import "errors"

var errMissingPattern = errors.New("deepgrep: a pattern is required (either -e or the first positional argument)")
