package llm

import "errors"

var (
	ErrNoProvider    = errors.New("llm: no provider configured")
	ErrEmptyResponse = errors.New("llm: empty response")
)
