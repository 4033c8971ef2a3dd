package llm

import (
	"errors"
	"time"
)

var timeout = 120 * time.Second

var (
	ErrAPIKeyNotSet     = errors.New("API key not set")
	ErrAPIRequestFailed = errors.New("API request failed")
	ErrNoChoices        = errors.New("no choices in completion response")
	ErrUnknownProvider  = errors.New("unknown LLM provider")
)
