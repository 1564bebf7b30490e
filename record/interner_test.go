package record

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/memtap/memcap/capture/link"
)

func TestNormalizeFlowIsDirectionIndependent(t *testing.T) {
	request := link.FlowKey{SrcIP: "10.0.0.1", SrcPort: 5555, DstIP: "10.0.0.2", DstPort: 11211}
	response := link.FlowKey{SrcIP: "10.0.0.2", SrcPort: 11211, DstIP: "10.0.0.1", DstPort: 5555}

	assert.Equal(t, NormalizeFlow(request), NormalizeFlow(response))
}

func TestInternerAssignsStableDenseIDs(t *testing.T) {
	in := NewInterner()

	a := NormalizeFlow(link.FlowKey{SrcIP: "10.0.0.1", SrcPort: 1, DstIP: "10.0.0.2", DstPort: 11211})
	b := NormalizeFlow(link.FlowKey{SrcIP: "10.0.0.1", SrcPort: 2, DstIP: "10.0.0.2", DstPort: 11211})

	id1 := in.ID(a)
	id2 := in.ID(b)
	id1Again := in.ID(a)

	assert.NotEqual(t, id1, id2)
	assert.Equal(t, id1, id1Again)
	assert.Equal(t, 2, in.Count())
}
