package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRoomID(t *testing.T) {
	assert.NoError(t, ValidateRoomID("room_abc-123"))
	assert.Error(t, ValidateRoomID(""))
	assert.Error(t, ValidateRoomID("has spaces"))
	assert.Error(t, ValidateRoomID("slash/xyz"))
	assert.Error(t, ValidateRoomID(strings.Repeat("a", 101)))
}

func TestValidateRoomName(t *testing.T) {
	assert.NoError(t, ValidateRoomName("Demo Room"))
	assert.Error(t, ValidateRoomName(""))
	assert.Error(t, ValidateRoomName("   "))
	assert.Error(t, ValidateRoomName(strings.Repeat("n", 101)))
	assert.Error(t, ValidateRoomName(string([]byte{0xff, 0xfe})))
}

func TestValidateAccessCode(t *testing.T) {
	assert.NoError(t, ValidateAccessCode(""))
	assert.NoError(t, ValidateAccessCode("secret"))
	assert.Error(t, ValidateAccessCode("abc"))
	assert.Error(t, ValidateAccessCode(strings.Repeat("c", 65)))
}

func TestValidateAssetRef(t *testing.T) {
	assert.NoError(t, ValidateAssetRef("https://assets.example.com/chair.glb"))
	assert.Error(t, ValidateAssetRef(""))
	assert.Error(t, ValidateAssetRef("  "))
	assert.Error(t, ValidateAssetRef(strings.Repeat("r", 513)))
}
