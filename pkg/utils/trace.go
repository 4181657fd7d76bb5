package utils

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// NewTraceID returns a short random id for correlating the logs of one job invocation.
func NewTraceID() string {
	id, err := gonanoid.New(16)
	if err != nil {
		return fmt.Sprintf("t%d", time.Now().UnixNano())
	}
	return id
}
