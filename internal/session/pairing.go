package session

import "github.com/BioHazard786/sensorlink/internal/message"

// receiverShouldPair accepts a message tagged discovery or one that claims
// the sender role.
func receiverShouldPair(tag message.Tag) bool {
	return tag.Kind == message.KindDiscovery || tag.Role == message.RoleSender
}

// senderShouldPair mirrors receiverShouldPair for the sender side.
func senderShouldPair(tag message.Tag) bool {
	return tag.Kind == message.KindDiscovery || tag.Role == message.RoleReceiver
}

func shouldPair(role message.Role, tag message.Tag) bool {
	switch role {
	case message.RoleReceiver:
		return receiverShouldPair(tag)
	case message.RoleSender:
		return senderShouldPair(tag)
	default:
		return false
	}
}
