package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefpgNewZeroedAndDistinct(t *testing.T) {
	phys := Mkphysmem(4)
	seen := map[Pa_t]bool{}
	for i := 0; i < 4; i++ {
		pg, pa, ok := phys.Refpg_new()
		require.True(t, ok)
		assert.False(t, seen[pa], "pa handed out twice")
		seen[pa] = true
		assert.NotZero(t, pa, "frame zero must stay reserved")
		for _, b := range pg {
			if b != 0 {
				t.Fatal("fresh frame not zeroed")
			}
		}
		assert.Equal(t, 1, phys.Refcnt(pa))
	}
	_, _, ok := phys.Refpg_new()
	assert.False(t, ok, "pool exhausted")
	assert.Equal(t, 0, phys.Freepgs())
}

func TestRefdownReturnsFrame(t *testing.T) {
	phys := Mkphysmem(2)
	_, pa, ok := phys.Refpg_new()
	require.True(t, ok)
	require.Equal(t, 1, phys.Freepgs())

	phys.Refup(pa)
	assert.Equal(t, 2, phys.Refcnt(pa))
	assert.False(t, phys.Refdown(pa))
	assert.True(t, phys.Refdown(pa))
	assert.Equal(t, 2, phys.Freepgs())

	// frame is reusable and comes back zeroed
	pg, pa2, ok := phys.Refpg_new()
	require.True(t, ok)
	pg[0] = 0xff
	require.True(t, phys.Refdown(pa2))
	pg3, _, ok := phys.Refpg_new()
	require.True(t, ok)
	assert.Zero(t, pg3[0])
}

func TestDmapViewsFrameMemory(t *testing.T) {
	phys := Mkphysmem(2)
	pg, pa, ok := phys.Refpg_new()
	require.True(t, ok)
	pg[123] = 0xab
	assert.Equal(t, uint8(0xab), phys.Dmap(pa)[123])
}

func TestLayoutConstants(t *testing.T) {
	assert.Zero(t, MMAPBASE%PGSIZE)
	assert.Zero(t, KERNBASE%PGSIZE)
	assert.Less(t, MMAPBASE, KERNBASE)
}
