package domain

// Storm notification content.
const (
	StormNotificationID    = 0
	StormNotificationTitle = "Storm Alert"
	StormNotificationBody  = "A storm might be approaching"
)

// EvaluateAlert debounces storm notifications to one per episode.
//
// alertState is the persisted "already alerted for this episode" flag. The flag
// is raised even while alerts are disabled so that re-enabling them mid-storm
// does not fire; it is cleared as soon as the storm signal goes away.
func EvaluateAlert(stormIncoming, alertsEnabled, alertState bool) (shouldNotify, newAlertState bool) {
	if !stormIncoming {
		return false, false
	}
	if alertState {
		return false, true
	}
	return alertsEnabled, true
}

// StormNotification returns the alert raised when a storm episode starts.
func StormNotification() Notification {
	return Notification{
		ID:       StormNotificationID,
		Title:    StormNotificationTitle,
		Body:     StormNotificationBody,
		Priority: PriorityHigh,
	}
}
