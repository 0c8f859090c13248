package domain

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room full")
	ErrRoomClosed     = errors.New("room closed")
	ErrNotMember      = errors.New("not a room member")
	ErrForbidden      = errors.New("forbidden")
	ErrAssetNotFound  = errors.New("asset not found")
	ErrStreamNotFound = errors.New("livestream not found")
	ErrStreamConflict = errors.New("room already has an active livestream")
	ErrStreamNotLive  = errors.New("livestream is not accepting this operation")
	ErrNotConnected   = errors.New("user not connected")
)
