package oracle

import "errors"

var (
	// ErrPipelineClosed is returned by Run after Close.
	ErrPipelineClosed = errors.New("oracle: pipeline is closed")

	// ErrPipelineRunning is returned by Run while a previous Run is
	// still active.
	ErrPipelineRunning = errors.New("oracle: pipeline is already running")
)
