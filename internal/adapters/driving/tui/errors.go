package tui

import "errors"

// ErrMissingDiagnosisService is returned when the diagnosis service is not provided.
var ErrMissingDiagnosisService = errors.New("tui: diagnosis service is required")

// ErrMissingSession is returned when the user or session ID is empty.
var ErrMissingSession = errors.New("tui: user and session IDs are required")
