package flow

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/m3rciful/studiobot/core/outbound"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Texts holds the fixed replies of the flow.
type Texts struct {
	GreetingHint    string `yaml:"greeting_hint"`
	AskContact      string `yaml:"ask_contact"`
	ContactInvalid  string `yaml:"contact_invalid"`
	ContactThanks   string `yaml:"contact_thanks"`
	LocationInvalid string `yaml:"location_invalid"`
	OtherLocation   string `yaml:"other_location"`
	WelcomeNew      string `yaml:"welcome_new"`
	WelcomeExisting string `yaml:"welcome_existing"`
	MenuInvalid     string `yaml:"menu_invalid"`
	ScheduleUnknown string `yaml:"schedule_unknown"`
	FeesUnknown     string `yaml:"fees_unknown"`
	JoinAck         string `yaml:"join_ack"`
	CallbackAck     string `yaml:"callback_ack"`
	PersonalAck     string `yaml:"personal_ack"`
	Farewell        string `yaml:"farewell"`
	Timeout         string `yaml:"timeout"`
	Reminder1       string `yaml:"reminder_1"`
	Reminder2       string `yaml:"reminder_2"`
}

// Prompt is an interactive message template.
type Prompt struct {
	Body    string            `yaml:"body"`
	Header  string            `yaml:"header"`
	Button  string            `yaml:"button"`
	Options []outbound.Option `yaml:"options"`
}

// Buttons renders the prompt as reply buttons.
func (p Prompt) Buttons() outbound.Message {
	return outbound.Buttons(p.Body, p.Options...)
}

// List renders the prompt as a list; body overrides the template body when set.
func (p Prompt) List(body string) outbound.Message {
	if body == "" {
		body = p.Body
	}
	return outbound.List(body, p.Header, p.Button, p.Options...)
}

// Prompts groups the interactive prompts.
type Prompts struct {
	Status            Prompt `yaml:"status"`
	Location          Prompt `yaml:"location"`
	ClassMode         Prompt `yaml:"class_mode"`
	Menu              Prompt `yaml:"menu"`
	Continue          Prompt `yaml:"continue"`
	ContinueAfterInfo Prompt `yaml:"continue_after_info"`
}

// City is a served location with its inline answers.
type City struct {
	ID       string   `yaml:"id"`
	Title    string   `yaml:"title"`
	Keywords Keywords `yaml:"keywords"`
	Schedule string   `yaml:"schedule"`
	Fees     string   `yaml:"fees"`
}

// Freeform holds the texts of one free-form collection tag.
type Freeform struct {
	Request string `yaml:"request"`
	Ack     string `yaml:"ack"`
	Empty   string `yaml:"empty"`
}

// Catalog is the data side of the flow: texts, prompts and keyword sets.
type Catalog struct {
	GreetingWords []string `yaml:"greeting_words"`
	Texts         Texts    `yaml:"texts"`
	Prompts       Prompts  `yaml:"prompts"`
	Statuses      struct {
		Existing Keywords `yaml:"existing"`
		New      Keywords `yaml:"new"`
	} `yaml:"statuses"`
	Cities    []City   `yaml:"cities"`
	OtherCity Keywords `yaml:"other_city"`
	Modes     struct {
		Studio   Keywords `yaml:"studio"`
		Personal Keywords `yaml:"personal"`
	} `yaml:"modes"`
	Intents  map[string]Keywords `yaml:"intents"`
	Freeform map[string]Freeform `yaml:"freeform"`
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog file; an empty path selects the embedded one.
func LoadCatalog(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	cat, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// ParseCatalog decodes and validates catalog YAML. Unknown keys are rejected.
func ParseCatalog(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cat Catalog
	if err := dec.Decode(&cat); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks that every text, prompt and keyword set the flow relies on is present.
func (c *Catalog) Validate() error {
	var errs []error
	need := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%s is empty", name))
		}
	}
	if len(c.GreetingWords) == 0 {
		errs = append(errs, errors.New("greeting_words is empty"))
	}
	t := c.Texts
	for name, v := range map[string]string{
		"greeting_hint": t.GreetingHint, "ask_contact": t.AskContact,
		"contact_invalid": t.ContactInvalid, "contact_thanks": t.ContactThanks,
		"location_invalid": t.LocationInvalid, "other_location": t.OtherLocation,
		"welcome_new": t.WelcomeNew, "welcome_existing": t.WelcomeExisting,
		"menu_invalid": t.MenuInvalid, "schedule_unknown": t.ScheduleUnknown,
		"fees_unknown": t.FeesUnknown, "join_ack": t.JoinAck,
		"callback_ack": t.CallbackAck, "personal_ack": t.PersonalAck,
		"farewell": t.Farewell, "timeout": t.Timeout,
		"reminder_1": t.Reminder1, "reminder_2": t.Reminder2,
	} {
		need("texts."+name, v)
	}

	p := c.Prompts
	for name, msg := range map[string]outbound.Message{
		"status":              p.Status.Buttons(),
		"class_mode":          p.ClassMode.Buttons(),
		"continue":            p.Continue.Buttons(),
		"continue_after_info": p.ContinueAfterInfo.Buttons(),
		"location":            p.Location.List(""),
		"menu":                p.Menu.List(t.WelcomeNew),
	} {
		if err := msg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("prompts.%s: %w", name, err))
		}
	}

	if len(c.Statuses.Existing) == 0 || len(c.Statuses.New) == 0 {
		errs = append(errs, errors.New("statuses need existing and new keywords"))
	}
	if len(c.Cities) == 0 {
		errs = append(errs, errors.New("cities is empty"))
	}
	for i, city := range c.Cities {
		if city.ID == "" || len(city.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("cities[%d] needs id and keywords", i))
		}
	}
	if len(c.OtherCity) == 0 {
		errs = append(errs, errors.New("other_city is empty"))
	}
	if len(c.Modes.Studio) == 0 || len(c.Modes.Personal) == 0 {
		errs = append(errs, errors.New("modes need studio and personal keywords"))
	}
	for _, intent := range intentOrder {
		if len(c.Intents[intent]) == 0 {
			errs = append(errs, fmt.Errorf("intents.%s is empty", intent))
		}
	}
	for _, tag := range freeformTags {
		ff := c.Freeform[tag]
		need("freeform."+tag+".request", ff.Request)
		need("freeform."+tag+".ack", ff.Ack)
		need("freeform."+tag+".empty", ff.Empty)
	}
	return errors.Join(errs...)
}

// City returns the catalog entry for id.
func (c *Catalog) City(id string) (City, bool) {
	for _, city := range c.Cities {
		if city.ID == id {
			return city, true
		}
	}
	return City{}, false
}

func render(tpl, name string) string {
	greeting := ""
	if name != "" {
		greeting = "Hi " + name + " "
	}
	return strings.NewReplacer("{name}", name, "{greeting}", greeting).Replace(tpl)
}
