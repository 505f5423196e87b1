package engine

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/talgya/pedsim/internal/agents"
)

func byCityThenPlot(a, b agents.Pedestrian) int {
	if c := cmp.Compare(a.City, b.City); c != 0 {
		return c
	}
	return cmp.Compare(a.Plot, b.Plot)
}

func byPlot(a, b agents.Pedestrian) int {
	return cmp.Compare(a.Plot, b.Plot)
}

// sortByCityAndPlot orders the array for bucketed queries. Pedestrians never
// change city, so after the first full sort only cities flagged dirty are
// re-sorted, each within its own range.
func (m *Manager) sortByCityAndPlot() {
	if m.firstSort {
		slices.SortStableFunc(m.peds, byCityThenPlot)
		m.firstSort = false
		clear(m.dirty)
	} else {
		for c, d := range m.dirty {
			if !d {
				continue
			}
			m.dirty[c] = false
			slices.SortStableFunc(m.peds[m.cityPed[c]:m.cityPed[c+1]], byPlot)
		}
	}
	m.rebuildRanges()
	m.needSort = false
}

// rebuildRanges recomputes both range tables and the identity map from the
// current array order.
func (m *Manager) rebuildRanges() {
	nc, np := m.w.NumCities(), m.w.NumPlots()
	m.cityPed = resizeInts(m.cityPed, nc+1)
	m.plotPed = resizeInts(m.plotPed, np+1)

	pix := 0
	for c := 0; c < nc; c++ {
		m.cityPed[c] = pix
		for pix < len(m.peds) && m.peds[pix].City == c {
			pix++
		}
	}
	m.cityPed[nc] = pix

	pix = 0
	for p := 0; p < np; p++ {
		m.plotPed[p] = pix
		for pix < len(m.peds) && m.peds[pix].Plot == p {
			pix++
		}
	}
	m.plotPed[np] = pix

	clear(m.index)
	for i := range m.peds {
		m.index[m.peds[i].SSN] = i
	}
}

func resizeInts(s []int, n int) []int {
	if cap(s) < n {
		return make([]int, n)
	}
	return s[:n]
}

// CheckIndex scans the whole array and verifies that every city and every
// plot occupies exactly the contiguous range the tables claim.
func (m *Manager) CheckIndex() error {
	nc, np := m.w.NumCities(), m.w.NumPlots()
	if len(m.cityPed) != nc+1 || len(m.plotPed) != np+1 {
		return fmt.Errorf("range tables sized %d/%d, expected %d/%d", len(m.cityPed), len(m.plotPed), nc+1, np+1)
	}
	if m.cityPed[nc] != len(m.peds) || m.plotPed[np] != len(m.peds) {
		return fmt.Errorf("end sentinels %d/%d, expected %d", m.cityPed[nc], m.plotPed[np], len(m.peds))
	}
	for c := 0; c < nc; c++ {
		for i := m.cityPed[c]; i < m.cityPed[c+1]; i++ {
			if m.peds[i].City != c {
				return fmt.Errorf("ped %d (ssn %d) in city %d range has city %d", i, m.peds[i].SSN, c, m.peds[i].City)
			}
		}
	}
	for p := 0; p < np; p++ {
		for i := m.plotPed[p]; i < m.plotPed[p+1]; i++ {
			if m.peds[i].Plot != p {
				return fmt.Errorf("ped %d (ssn %d) in plot %d range has plot %d", i, m.peds[i].SSN, p, m.peds[i].Plot)
			}
		}
	}
	for i := range m.peds {
		if ix, ok := m.index[m.peds[i].SSN]; !ok || ix != i {
			return fmt.Errorf("identity map stale for ssn %d", m.peds[i].SSN)
		}
	}
	return nil
}
