package workflowagent

import "errors"

var (
	errMissingPredicate = errors.New("workflowagent: If predicate is required")
	errMissingThen      = errors.New("workflowagent: Then agent is required")
)
