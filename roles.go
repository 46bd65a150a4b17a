package convstore

// RoleForSender maps a log sender to a turn role. The owner's handle maps to user,
// the assistant identity to assistant, and everything else to developer.
func RoleForSender(sender, ownerHandle string) Role {
	switch sender {
	case ownerHandle:
		return RoleUser
	case AssistantSender:
		return RoleAssistant
	default:
		return RoleDeveloper
	}
}

// SenderForRole is the inverse of RoleForSender for senders the log actually records.
func SenderForRole(role Role, ownerHandle string) string {
	switch role {
	case RoleUser:
		return ownerHandle
	case RoleAssistant:
		return AssistantSender
	default:
		return DeveloperSender
	}
}

// TurnsFromLog maps every log entry to a turn, preserving order.
func TurnsFromLog(entries []LogEntry, ownerHandle string) []Turn {
	turns := make([]Turn, 0, len(entries))
	for _, e := range entries {
		turns = AddTurn(turns, RoleForSender(e.Sender, ownerHandle), e.Content)
	}
	return turns
}
