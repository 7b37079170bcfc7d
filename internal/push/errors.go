package push

import "errors"

var (
	errMissingHandler = errors.New("push: handler is required")
	errMissingURL     = errors.New("push: url is required")
	errMissingUserID  = errors.New("push: user id is required")
)
