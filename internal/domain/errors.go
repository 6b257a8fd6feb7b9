package domain

import "errors"

var (
	ErrNotFound        = errors.New("participant not found")
	ErrNotPaired       = errors.New("participant not paired")
	ErrPolicyViolation = errors.New("content policy violation")
	ErrAlreadyQueued   = errors.New("participant already queued")
	ErrBanned          = errors.New("origin is banned")
	ErrInvalidPayload  = errors.New("invalid payload")
)
