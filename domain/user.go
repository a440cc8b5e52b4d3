package domain

// UserStatus is a point-in-time snapshot of one registered user and the room
// they currently occupy, if any.
type UserStatus struct {
	Name string
	Room string // empty when the user has not joined a room
}

// String renders the "nombre (sala)" form used by USER_LIST_ALL replies.
func (u UserStatus) String() string {
	if u.Room == "" {
		return u.Name + " (sin sala)"
	}
	return u.Name + " (" + u.Room + ")"
}
