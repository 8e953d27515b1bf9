package portals

import (
	"errors"
	"slices"
)

// PortalTriggerSystem turns trigger overlaps into enter and exit calls.
// It runs after the spatial grid is rebuilt for the fixed step.
func PortalTriggerSystem(cmd *Commands, world *PortalWorld, grid *SpatialHashGrid) {
	for _, p := range world.Portals() {
		if _, alive := world.portals[p.Entity]; !alive {
			continue
		}
		pose, ok := p.pose(cmd)
		if !ok {
			continue
		}
		box := p.trigger(pose)
		bmin, bmax := box.AABB()

		overlapping := make(set[EntityId])
		for _, eid := range grid.QueryAABB(AABBComponent{Min: bmin, Max: bmax}) {
			if eid == p.Entity {
				continue
			}
			aabb, ok := GetComponent[AABBComponent](cmd, eid)
			if !ok || !box.OverlapsAABB(aabb.Min, aabb.Max) {
				continue
			}
			overlapping[eid] = struct{}{}
		}

		world.exitTrigger(cmd, p, overlapping)
		world.enterTrigger(cmd, p, overlapping)
	}
}

func (w *PortalWorld) exitTrigger(cmd *Commands, p *Portal, overlapping set[EntityId]) {
	var leaving []EntityId
	for eid := range p.inside {
		if _, still := overlapping[eid]; !still {
			leaving = append(leaving, eid)
		}
	}
	slices.Sort(leaving)

	for _, eid := range leaving {
		delete(p.inside, eid)
		if !cmd.EntityExists(eid) {
			w.ForgetTraveller(cmd, eid)
			continue
		}
		if err := w.OnTravellerExit(cmd, p.Entity, eid); err != nil {
			w.logger.Warnf("%v", err)
		}
		w.forgetCapabilitiesIfOutside(eid)
	}
}

func (w *PortalWorld) enterTrigger(cmd *Commands, p *Portal, overlapping set[EntityId]) {
	entering := make([]EntityId, 0, len(overlapping))
	for eid := range overlapping {
		if _, already := p.inside[eid]; !already {
			entering = append(entering, eid)
		}
	}
	slices.Sort(entering)

	for _, eid := range entering {
		err := w.OnTravellerEnter(cmd, p.Entity, eid)
		switch {
		case err == nil:
		case errors.Is(err, errOwnedElsewhere):
			// Retried next step while it still overlaps.
			w.logger.Debugf("%v", err)
			continue
		case errors.Is(err, ErrNotTraveller):
			w.logger.Debugf("%v", err)
		default:
			w.logger.Warnf("%v", err)
			continue
		}
		p.inside[eid] = struct{}{}
	}
}

func (w *PortalWorld) forgetCapabilitiesIfOutside(eid EntityId) {
	if _, tracked := w.owner[eid]; tracked {
		return
	}
	for _, p := range w.order {
		if _, in := p.inside[eid]; in {
			return
		}
	}
	delete(w.caps, eid)
}
