package flow

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/studiobot/core/extract"
	"github.com/m3rciful/studiobot/core/logger"
	"github.com/m3rciful/studiobot/core/outbound"
	"github.com/m3rciful/studiobot/core/session"
)

// Notice asks the orchestrator to alert the team. Contact fields are taken
// from the session when the notice is delivered.
type Notice struct {
	Kind   string
	Detail string
}

// Result is the outcome of one step.
type Result struct {
	// Session is the updated copy; the input session is never mutated.
	Session  *session.Session
	Messages []outbound.Message
	Notices  []Notice
	// End asks the caller to delete the session.
	End bool
	// Rule names the rule that handled the input.
	Rule string
}

// Rule is one (predicate, action) pair of a state.
type Rule struct {
	Name string
	When func(t *turn) bool
	Then func(t *turn)
}

// turn is the mutable context handed to rules.
type turn struct {
	e   *Engine
	s   *session.Session
	in  normalized
	res *Result

	contact extract.Contact
}

func (t *turn) say(msgs ...outbound.Message) {
	t.res.Messages = append(t.res.Messages, msgs...)
}

func (t *turn) text(body string) {
	t.say(outbound.Text(render(body, t.s.Field(session.FieldName))))
}

func (t *turn) notify(kind, detail string) {
	t.res.Notices = append(t.res.Notices, Notice{Kind: kind, Detail: detail})
}

func (t *turn) moveTo(st session.State) {
	t.s.State = st
	if st != StateCollectingFreeformInput {
		t.s.Tag = ""
	}
}

// Engine applies one transition per inbound input.
type Engine struct {
	cat   *Catalog
	rules map[session.State][]Rule
}

// New builds an engine over a validated catalog.
func New(cat *Catalog) (*Engine, error) {
	if cat == nil {
		return nil, fmt.Errorf("flow: nil catalog")
	}
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("flow: %w", err)
	}
	e := &Engine{cat: cat}
	e.rules = e.table()
	return e, nil
}

// Catalog exposes the texts used by timer actions.
func (e *Engine) Catalog() *Catalog {
	return e.cat
}

// Initial is the state of a fresh session.
func (e *Engine) Initial() session.State {
	return StateGreeting
}

// Step applies one input to a copy of s.
func (e *Engine) Step(s *session.Session, in Input) Result {
	cur := s.Clone()
	if cur == nil {
		cur = &session.Session{State: StateGreeting}
	}
	res := &Result{Session: cur}
	t := &turn{e: e, s: cur, in: normalize(in), res: res}
	from := cur.State

	rules, ok := e.rules[cur.State]
	if !ok || !Known(cur.State) {
		res.Rule = "reset"
		t.moveTo(StateMainMenu)
		t.say(e.Welcome(cur))
		e.logStep(from, res)
		return *res
	}
	for _, r := range rules {
		if r.When == nil || r.When(t) {
			res.Rule = r.Name
			r.Then(t)
			break
		}
	}
	e.logStep(from, res)
	return *res
}

func (e *Engine) logStep(from session.State, res *Result) {
	logger.Debug(logger.Background(), "flow", "step.applied",
		slog.String("conversation_id", logger.MaskAddress(res.Session.ConversationID)),
		slog.String("from_state", string(from)),
		slog.String("to_state", string(res.Session.State)),
		slog.String("intent", res.Rule),
		slog.Int("messages", len(res.Messages)),
	)
}

// Welcome is the main-menu prompt for the stored client status.
func (e *Engine) Welcome(s *session.Session) outbound.Message {
	body := e.cat.Texts.WelcomeNew
	if s.Field(session.FieldStatus) == StatusExisting {
		body = e.cat.Texts.WelcomeExisting
	}
	return e.cat.Prompts.Menu.List(render(body, s.Field(session.FieldName)))
}

// ContinuePrompt is the yes/no prompt attached to reminders.
func (e *Engine) ContinuePrompt() outbound.Message {
	return e.cat.Prompts.Continue.Buttons()
}

func (e *Engine) table() map[session.State][]Rule {
	c := e.cat
	always := func(*turn) bool { return true }

	continueRules := func(prompt Prompt) []Rule {
		return []Rule{
			{Name: "yes", When: func(t *turn) bool { return t.in.is("yes") }, Then: func(t *turn) {
				t.moveTo(StateMainMenu)
				t.say(e.Welcome(t.s))
			}},
			{Name: "no", When: func(t *turn) bool { return t.in.is("no") }, Then: func(t *turn) {
				t.moveTo(StateTerminated)
				t.text(c.Texts.Farewell)
				t.res.End = true
			}},
			{Name: "reprompt", When: always, Then: func(t *turn) {
				t.say(prompt.Buttons())
			}},
		}
	}

	locationRules := make([]Rule, 0, len(c.Cities)+2)
	for _, city := range c.Cities {
		city := city
		locationRules = append(locationRules, Rule{
			Name: "city:" + city.ID,
			When: func(t *turn) bool { return city.Keywords.match(t.in) },
			Then: func(t *turn) {
				t.s.SetField(session.FieldCity, city.ID)
				if t.s.Field(session.FieldStatus) == StatusExisting {
					t.moveTo(StateMainMenu)
					t.say(e.Welcome(t.s))
					return
				}
				t.moveTo(StateSelectingClassMode)
				t.say(c.Prompts.ClassMode.Buttons())
			},
		})
	}
	locationRules = append(locationRules,
		Rule{Name: "city:" + CityOther, When: func(t *turn) bool { return c.OtherCity.match(t.in) }, Then: func(t *turn) {
			t.s.SetField(session.FieldCity, t.in.raw)
			t.text(c.Texts.OtherLocation)
			t.notify(NoticeOtherLocation, t.in.raw)
			t.say(c.Prompts.ContinueAfterInfo.Buttons())
			t.moveTo(StateAwaitingContinueAfterInfo)
		}},
		Rule{Name: "reprompt", When: always, Then: func(t *turn) {
			t.text(c.Texts.LocationInvalid)
			t.say(c.Prompts.Location.List(""))
		}},
	)

	menuRules := make([]Rule, 0, len(intentOrder)+1)
	for _, intent := range intentOrder {
		intent := intent
		kw := c.Intents[intent]
		menuRules = append(menuRules, Rule{
			Name: intent,
			When: func(t *turn) bool { return kw.match(t.in) },
			Then: func(t *turn) { e.answer(t, intent) },
		})
	}
	menuRules = append(menuRules, Rule{Name: "reprompt", When: always, Then: func(t *turn) {
		t.text(c.Texts.MenuInvalid)
		t.say(e.Welcome(t.s))
	}})

	return map[session.State][]Rule{
		StateGreeting: {
			{Name: "greet", When: func(t *turn) bool { return oneOf(c.GreetingWords, t.in.text) }, Then: func(t *turn) {
				t.moveTo(StateCollectingContactInfo)
				t.text(c.Texts.AskContact)
			}},
			{Name: "hint", When: always, Then: func(t *turn) { t.text(c.Texts.GreetingHint) }},
		},
		StateCollectingContactInfo: {
			{Name: "contact", When: func(t *turn) bool {
				t.contact = extract.ContactInfo(t.in.raw)
				return t.contact.Complete()
			}, Then: func(t *turn) {
				t.s.SetField(session.FieldName, t.contact.Name)
				t.s.SetField(session.FieldEmail, t.contact.Email)
				t.s.SetField(session.FieldPhone, t.s.ConversationID)
				t.moveTo(StateConfirmingClientStatus)
				t.text(c.Texts.ContactThanks)
				t.say(c.Prompts.Status.Buttons())
			}},
			{Name: "invalid", When: always, Then: func(t *turn) { t.text(c.Texts.ContactInvalid) }},
		},
		StateConfirmingClientStatus: {
			{Name: StatusExisting, When: func(t *turn) bool { return c.Statuses.Existing.match(t.in) }, Then: func(t *turn) {
				e.chooseStatus(t, StatusExisting)
			}},
			{Name: StatusNew, When: func(t *turn) bool { return c.Statuses.New.match(t.in) }, Then: func(t *turn) {
				e.chooseStatus(t, StatusNew)
			}},
			{Name: "reprompt", When: always, Then: func(t *turn) { t.say(c.Prompts.Status.Buttons()) }},
		},
		StateSelectingLocation: locationRules,
		StateSelectingClassMode: {
			{Name: ModeStudio, When: func(t *turn) bool { return c.Modes.Studio.match(t.in) }, Then: func(t *turn) {
				t.s.SetField(session.FieldMode, ModeStudio)
				t.moveTo(StateMainMenu)
				t.say(e.Welcome(t.s))
			}},
			{Name: ModePersonal, When: func(t *turn) bool { return c.Modes.Personal.match(t.in) }, Then: func(t *turn) {
				t.s.SetField(session.FieldMode, ModePersonal)
				t.notify(NoticePersonalTraining, "")
				t.text(c.Texts.PersonalAck)
				t.say(c.Prompts.Continue.Buttons())
				t.moveTo(StateAwaitingContinue)
			}},
			{Name: "reprompt", When: always, Then: func(t *turn) { t.say(c.Prompts.ClassMode.Buttons()) }},
		},
		StateMainMenu: menuRules,
		StateCollectingFreeformInput: {
			{Name: "submit", When: func(t *turn) bool { return t.in.raw != "" && isFreeformTag(t.s.Tag) }, Then: func(t *turn) {
				tag := t.s.Tag
				t.s.SetField(tag, t.in.raw)
				t.notify(tag, t.in.raw)
				t.text(c.Freeform[tag].Ack)
				t.say(c.Prompts.Continue.Buttons())
				t.moveTo(StateAwaitingContinue)
			}},
			{Name: "reset", When: func(t *turn) bool { return !isFreeformTag(t.s.Tag) }, Then: func(t *turn) {
				t.moveTo(StateMainMenu)
				t.say(e.Welcome(t.s))
			}},
			{Name: "reprompt", When: always, Then: func(t *turn) { t.text(c.Freeform[t.s.Tag].Empty) }},
		},
		StateAwaitingContinue:          continueRules(c.Prompts.Continue),
		StateAwaitingContinueAfterInfo: continueRules(c.Prompts.ContinueAfterInfo),
	}
}

func (e *Engine) chooseStatus(t *turn, status string) {
	t.s.SetField(session.FieldStatus, status)
	t.moveTo(StateSelectingLocation)
	t.say(e.cat.Prompts.Location.List(""))
}

func (e *Engine) answer(t *turn, intent string) {
	c := e.cat
	city, known := c.City(t.s.Field(session.FieldCity))
	switch intent {
	case IntentSchedule:
		if known && city.Schedule != "" {
			t.text(city.Schedule)
		} else {
			t.text(c.Texts.ScheduleUnknown)
		}
	case IntentFees:
		if known && city.Fees != "" {
			t.text(city.Fees)
		} else {
			t.text(c.Texts.FeesUnknown)
		}
	case IntentJoin:
		t.text(c.Texts.JoinAck)
		t.notify(NoticeJoin, "")
	case IntentCallback:
		t.text(c.Texts.CallbackAck)
		t.notify(NoticeCallback, "")
	default:
		t.s.Tag = intent
		t.moveTo(StateCollectingFreeformInput)
		t.text(c.Freeform[intent].Request)
		return
	}
	t.say(c.Prompts.ContinueAfterInfo.Buttons())
	t.moveTo(StateAwaitingContinueAfterInfo)
}

func oneOf(list []string, s string) bool {
	for _, w := range list {
		if strings.EqualFold(strings.TrimSpace(w), s) {
			return true
		}
	}
	return false
}

func isFreeformTag(tag string) bool {
	for _, t := range freeformTags {
		if t == tag {
			return true
		}
	}
	return false
}
