package intent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/yangwenmai/sitebook/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const statusPayload = `{"action":{"actionType":"update_action_item_status","actionData":{"id":"Stucco / siding","status":"%s"}}}`

func TestProcess_MarksItemCompleted(t *testing.T) {
	env := newTestEnv(t)
	item := env.seedItem(t, "Stucco / siding")
	reply := "Great, the plasterers finished the color coat today (id: " + item.ID + "). I've marked it complete.\n" +
		fmt.Sprintf(statusPayload, "completed")

	res := env.processor.Process(context.Background(), reply, "")

	require.Equal(t, Found, res.Extraction.State)
	require.NotNil(t, res.Outcome)
	assert.True(t, res.Outcome.Success)
	assert.Equal(t, "Stucco / siding", res.Outcome.Title)

	assert.Contains(t, res.Display, `✅ Marked "Stucco / siding" as completed.`)
	assert.NotContains(t, res.Display, "{")
	assert.NotContains(t, res.Display, "actionType")
	assert.NotContains(t, res.Display, item.ID)
	assert.Contains(t, res.Display, "Great, the plasterers finished the color coat today.")

	got := env.item(t, item.ID)
	assert.Equal(t, model.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.Len(t, got.Notes, 1)
	assert.Equal(t, "Status changed from open to completed by automated assistant.", got.Notes[0].Text)
	assert.Equal(t, DefaultActor, got.Notes[0].Author)
}

func TestProcess_RejectsStatusOutsideEnumeration(t *testing.T) {
	env := newTestEnv(t)
	item := env.seedItem(t, "Stucco / siding")
	reply := "Archiving that one.\n" + fmt.Sprintf(statusPayload, "archived")

	res := env.processor.Process(context.Background(), reply, "")

	require.NotNil(t, res.Outcome)
	assert.False(t, res.Outcome.Success)
	assert.Equal(t, ReasonInvalid, res.Outcome.Reason)
	assert.Contains(t, res.Display, FailurePrefix)
	assert.Contains(t, res.Display, "incomplete or invalid (status)")
	assert.NotContains(t, res.Display, "actionType")

	got := env.item(t, item.ID)
	assert.Equal(t, item, got.ActionItem, "no mutation on validation failure")
	assert.Empty(t, got.Notes)
}

func TestProcess_UnknownReference(t *testing.T) {
	env := newTestEnv(t)
	item := env.seedItem(t, "Stucco / siding")
	reply := "Closing out the plumbing.\n" +
		`{"action":{"actionType":"update_action_item_status","actionData":{"id":"Plumbing rough-in","status":"completed"}}}`

	res := env.processor.Process(context.Background(), reply, "")

	require.NotNil(t, res.Outcome)
	assert.False(t, res.Outcome.Success)
	assert.Equal(t, ReasonNotFound, res.Outcome.Reason)
	assert.Contains(t, res.Display, FailurePrefix+`: no action item matches "Plumbing rough-in"`)
	assert.NotContains(t, res.Display, "incomplete")

	got := env.item(t, item.ID)
	assert.Equal(t, item, got.ActionItem)
	assert.Empty(t, got.Notes)
}

func TestProcess_StrayBracesAreDroppedSilently(t *testing.T) {
	env := newTestEnv(t)
	item := env.seedItem(t, "Stucco / siding")
	reply := "Let me check with the super } and I'll follow up tomorrow. }"

	res := env.processor.Process(context.Background(), reply, "")

	assert.Equal(t, Malformed, res.Extraction.State)
	assert.Nil(t, res.Outcome)
	assert.NotContains(t, res.Display, "}")
	assert.NotContains(t, res.Display, SuccessPrefix)
	assert.NotContains(t, res.Display, FailurePrefix)
	assert.Contains(t, res.Display, "I'll follow up tomorrow.")

	assert.Equal(t, item, env.item(t, item.ID).ActionItem)
}

func TestProcess_PlainReply(t *testing.T) {
	env := newTestEnv(t)
	reply := "The inspection is booked for Thursday at 9am."

	res := env.processor.Process(context.Background(), reply, "dana")
	assert.Equal(t, Absent, res.Extraction.State)
	assert.Nil(t, res.Outcome)
	assert.Equal(t, reply, res.Display)
}

func TestProcess_TruncatedPayloadStillApplies(t *testing.T) {
	env := newTestEnv(t)
	item := env.seedItem(t, "Stucco / siding")
	reply := "Adding that note.\n" +
		`{"action":{"actionType":"add_action_item_note","actionData":{"id":"Stucco / siding","note":"Sand 402 color coat approved"`

	res := env.processor.Process(context.Background(), reply, "dana")

	require.NotNil(t, res.Outcome)
	assert.True(t, res.Outcome.Success, res.Outcome.Message)
	assert.Equal(t, "fields", res.Extraction.Method)
	assert.Equal(t, "Adding that note.\n\n"+SuccessPrefix+`Added a note to "Stucco / siding".`, res.Display)

	got := env.item(t, item.ID)
	require.Len(t, got.Notes, 1)
	assert.Equal(t, "Sand 402 color coat approved", got.Notes[0].Text)
	assert.Equal(t, "dana", got.Notes[0].Author)
}
