package models

// All lists every model owned by this repo, in migration order.
func All() []interface{} {
	return []interface{}{
		&Profile{},
		&Video{},
		&Promotion{},
		&PaymentSession{},
		&PaymentCallbackHistory{},
		&DirectMessage{},
		&Notification{},
		&NoteBoxEntry{},
		&ScheduledTask{},
		&ScheduledTaskHistory{},
	}
}
