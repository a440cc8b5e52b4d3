package errors

import "fmt"

var (
	ErrNameTaken  = fmt.Errorf("display name already in use")
	ErrNotInRoom  = fmt.Errorf("session is not in a room")
	ErrEmptyWords = fmt.Errorf("no words have been found")
)
