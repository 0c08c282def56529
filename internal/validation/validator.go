package validation

import (
	"fmt"
	"strings"
)

// ValidateChannelName validates an IRC channel name
func ValidateChannelName(channel string) error {
	if strings.TrimSpace(channel) == "" {
		return fmt.Errorf("channel name is required")
	}
	// IRC channels must start with #, &, +, or !
	if !strings.ContainsRune("#&+!", rune(channel[0])) {
		return fmt.Errorf("channel name must start with #, &, +, or !")
	}
	// Channel names have length limits (typically 50 chars, but varies by server)
	if len(channel) > 200 {
		return fmt.Errorf("channel name too long (max 200 characters)")
	}
	if strings.ContainsAny(channel, " \x00\x07\x0A\x0D,") {
		return fmt.Errorf("channel name contains invalid characters")
	}
	return nil
}

// ValidateServerAddress validates a server address and port
func ValidateServerAddress(address string, port int) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return fmt.Errorf("server address is required")
	}
	if strings.ContainsAny(address, " /") {
		return fmt.Errorf("server address must be a bare host name")
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

// ValidateNick validates a nickname. Nicks end up as prefix identities and
// message targets, so anything that would split a protocol line is refused.
func ValidateNick(nick string) error {
	if strings.TrimSpace(nick) == "" {
		return fmt.Errorf("nickname is required")
	}
	if strings.ContainsAny(nick, " \x00\r\n!@:,*?") {
		return fmt.Errorf("nickname %q contains invalid characters", nick)
	}
	if strings.ContainsRune("#&+$:", rune(nick[0])) || (nick[0] >= '0' && nick[0] <= '9') {
		return fmt.Errorf("nickname %q has an invalid first character", nick)
	}
	return nil
}

// ValidatePhrase validates free text that is compared against message
// bodies, such as the shutdown phrase.
func ValidatePhrase(name, phrase string) error {
	if strings.TrimSpace(phrase) == "" {
		return fmt.Errorf("%s is required", name)
	}
	if strings.ContainsAny(phrase, "\r\n\x00") {
		return fmt.Errorf("%s must be a single line", name)
	}
	return nil
}
