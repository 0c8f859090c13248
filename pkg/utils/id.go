package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateID generates a unique ID with the given prefix.
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

func GenerateRoomID() string   { return GenerateID("room") }
func GenerateAssetID() string  { return GenerateID("asset") }
func GenerateStreamID() string { return GenerateID("stream") }
func GenerateUserID() string   { return GenerateID("user") }

// GenerateRTCSessionID identifies one viewer's peer connection attempt.
func GenerateRTCSessionID() string { return GenerateID("rtc") }
