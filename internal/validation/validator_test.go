package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateChannelName(t *testing.T) {
	for _, ok := range []string{"##garybot", "#go-nuts", "&local", "+modeless", "!12345chan"} {
		assert.NoError(t, ValidateChannelName(ok), ok)
	}
	for _, bad := range []string{"", "   ", "garybot", "#with space", "#a,b", "#bell\x07"} {
		assert.Error(t, ValidateChannelName(bad), bad)
	}
}

func TestValidateServerAddress(t *testing.T) {
	assert.NoError(t, ValidateServerAddress("irc.libera.chat", 6697))
	assert.Error(t, ValidateServerAddress("", 6697))
	assert.Error(t, ValidateServerAddress("irc.libera.chat", 0))
	assert.Error(t, ValidateServerAddress("irc.libera.chat", 70000))
	assert.Error(t, ValidateServerAddress("ircs://irc.libera.chat", 6697))
}

func TestValidateNick(t *testing.T) {
	for _, ok := range []string{"garybot", "gary_green", "[bot]", "a-b"} {
		assert.NoError(t, ValidateNick(ok), ok)
	}
	for _, bad := range []string{"", "two words", "nick!ident", "#chan", "9lives", "multi\nline", "***"} {
		assert.Error(t, ValidateNick(bad), bad)
	}
}

func TestValidatePhrase(t *testing.T) {
	assert.NoError(t, ValidatePhrase("shutdown phrase", "goodnight"))
	assert.Error(t, ValidatePhrase("shutdown phrase", " "))
	assert.Error(t, ValidatePhrase("shutdown phrase", "good\nnight"))
}
