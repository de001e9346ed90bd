package config

import (
	"errors"
	"fmt"
)

// ErrConfiguration marks fatal setup failures: missing credentials, unknown
// model keywords, unknown project types. It is the only error class allowed
// to escape an audit.
var ErrConfiguration = errors.New("configuration error")

// ErrNotImplemented marks a recognised but unsupported configuration, such as
// a project type without a registered analyzer. It matches ErrConfiguration.
var ErrNotImplemented = fmt.Errorf("%w: not implemented", ErrConfiguration)
