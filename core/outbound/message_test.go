package outbound

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	yes := Option{ID: "yes", Title: "Yes"}
	assert.NoError(t, Text("hi").Validate())
	assert.Error(t, Text("").Validate())
	assert.NoError(t, Buttons("more?", yes, Option{ID: "no", Title: "No"}).Validate())
	assert.Error(t, Buttons("too many", yes, yes, yes, yes).Validate())
	assert.Error(t, Buttons("none").Validate())
	assert.Error(t, List("pick", "City", "Show", Option{ID: "x"}).Validate())
	assert.Error(t, Message{Kind: "audio", Body: "x"}.Validate())

	rows := make([]Option, MaxListRows+1)
	for i := range rows {
		rows[i] = Option{ID: "r", Title: "R"}
	}
	assert.Error(t, List("pick", "City", "Show", rows...).Validate())
	assert.NoError(t, List("pick", "City", "Show", rows[:MaxListRows]...).Validate())
}
