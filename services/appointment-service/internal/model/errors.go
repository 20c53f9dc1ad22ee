package model

import "errors"

// Storage outcomes shared by every repository backend.
var (
	ErrNotFound        = errors.New("not found")
	ErrSlotTaken       = errors.New("slot already taken")
	ErrAlreadyCanceled = errors.New("appointment already canceled")
)
