package realtime

import "fmt"

// Room names are pure functions of the user id so any process in the fleet
// can address a peer's rooms without a lookup.

// DMRoom is the per-user direct-message room. Direct messages, typing
// indicators, and signaling relays are delivered here.
func DMRoom(userID int64) string {
	return fmt.Sprintf("dm:user:%d", userID)
}

// NotificationsRoom is the per-user notification room.
func NotificationsRoom(userID int64) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}
