package cache

// Share keys
func KeyShareToken(token string) string {
	return Key("shares", "token", token)
}

func KeyShare(shareID int64) string {
	return Key("shares", shareID)
}

// Directory keys
func KeyUserGroups(userID string) string {
	return Key("users", "groups", userID)
}

func KeyDisplayName(userID string) string {
	return Key("users", "displayname", userID)
}
