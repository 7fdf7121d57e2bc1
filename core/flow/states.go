package flow

import "github.com/m3rciful/studiobot/core/session"

// Conversation states.
const (
	StateGreeting                  session.State = "greeting"
	StateCollectingContactInfo     session.State = "collecting_contact_info"
	StateConfirmingClientStatus    session.State = "confirming_client_status"
	StateSelectingLocation         session.State = "selecting_location"
	StateSelectingClassMode        session.State = "selecting_class_mode"
	StateMainMenu                  session.State = "main_menu"
	StateCollectingFreeformInput   session.State = "collecting_freeform_input"
	StateAwaitingContinue          session.State = "awaiting_continue"
	StateAwaitingContinueAfterInfo session.State = "awaiting_continue_after_info"
	StateTerminated                session.State = "terminated"
)

// Client statuses stored under session.FieldStatus.
const (
	StatusNew      = "new"
	StatusExisting = "existing"
)

// Class modes stored under session.FieldMode.
const (
	ModeStudio   = "studio"
	ModePersonal = "personal"
)

// Main-menu intents in match priority order.
const (
	IntentSchedule = "schedule"
	IntentFees     = "fees"
	IntentJoin     = "join"
	IntentCallback = "callback"
	IntentReferral = "referral"
	IntentConcern  = "concern"
	IntentFeedback = "feedback"
)

var intentOrder = []string{
	IntentSchedule, IntentFees, IntentJoin, IntentCallback,
	IntentReferral, IntentConcern, IntentFeedback,
}

// Free-form tags; each doubles as the session field and notice kind.
const (
	TagReferral = session.FieldReferral
	TagConcern  = session.FieldConcern
	TagFeedback = session.FieldFeedback
)

var freeformTags = []string{TagReferral, TagConcern, TagFeedback}

// Team notice kinds.
const (
	NoticeOtherLocation    = "other_location"
	NoticePersonalTraining = "personal_training"
	NoticeJoin             = "join"
	NoticeCallback         = "callback"
	NoticeReferral         = TagReferral
	NoticeConcern          = TagConcern
	NoticeFeedback         = TagFeedback
)

// CityOther marks a location outside the served cities.
const CityOther = "other"

// Known reports whether st belongs to the state enumeration.
func Known(st session.State) bool {
	switch st {
	case StateGreeting, StateCollectingContactInfo, StateConfirmingClientStatus,
		StateSelectingLocation, StateSelectingClassMode, StateMainMenu,
		StateCollectingFreeformInput, StateAwaitingContinue,
		StateAwaitingContinueAfterInfo, StateTerminated:
		return true
	}
	return false
}
