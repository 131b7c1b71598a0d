package returns

type Tone string

const (
	ToneNeutral Tone = "neutral"
	ToneWarning Tone = "warning"
	ToneInfo    Tone = "info"
	ToneSuccess Tone = "success"
)

func (s Status) Tone() Tone {
	switch s {
	case StatusReturnOrderCreated:
		return ToneWarning
	case StatusPendingDelivery:
		return ToneInfo
	case StatusDelivered:
		return ToneSuccess
	default:
		return ToneNeutral
	}
}

type ContextAction string

const (
	ActionNone       ContextAction = ""
	ActionMarkAsSent ContextAction = "mark-sent"
	ActionTrack      ContextAction = "track"
)

// ContextAction is the single status-dependent button shown next to the badge.
func (s Status) ContextAction() ContextAction {
	switch s {
	case StatusReturnOrderCreated:
		return ActionMarkAsSent
	case StatusPendingDelivery:
		return ActionTrack
	default:
		return ActionNone
	}
}

func (a ContextAction) Label() string {
	switch a {
	case ActionMarkAsSent:
		return "Mark as sent"
	case ActionTrack:
		return "Track Order"
	default:
		return ""
	}
}
