package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusChannel_DropsOldestWhenFull(t *testing.T) {
	t.Parallel()

	sc := NewStatusChannel(2)
	sc.Send(Event{Kind: EventStarted})
	sc.Send(Event{Kind: EventUnderrun})
	sc.Send(Event{Kind: EventOverrun}) // should evict EventStarted

	first := <-sc.C()
	second := <-sc.C()
	assert.Equal(t, EventUnderrun, first.Kind)
	assert.Equal(t, EventOverrun, second.Kind)
}

func TestStopReason_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "CaptureFormatChange", StopCaptureFormatChange.String())
	assert.Equal(t, "None", StopNone.String())
}
