package portals

import (
	"errors"
	"fmt"

	"github.com/gekko3d/portals/portalrt/core"
)

type capability uint8

const (
	capTraveller capability = 1 << iota
	capPortal
	capClone
)

// errOwnedElsewhere refuses an enter while another portal tracks the traveller.
var errOwnedElsewhere = errors.New("traveller is tracked by another portal")

type trackedTraveller struct {
	entity   EntityId
	lastSide int
	clone    *VisualClone
	// arrived records a handoff: the traveller came through the linked
	// portal and gets no clone here.
	arrived bool
}

// CrossingEvent describes one completed crossing.
type CrossingEvent struct {
	Traveller EntityId
	From      EntityId
	To        EntityId
	Before    core.Pose
	After     core.Pose
	// FixedFrame is the fixed step the crossing happened in.
	FixedFrame uint64
}

// capabilitiesOf resolves what an entity can do once and caches it until
// the entity stops touching every trigger.
func (w *PortalWorld) capabilitiesOf(cmd *Commands, eid EntityId) capability {
	if c, ok := w.caps[eid]; ok {
		return c
	}
	var c capability
	if HasComponent[TravellerComponent](cmd, eid) {
		c |= capTraveller
	}
	if HasComponent[PortalComponent](cmd, eid) || HasComponent[PortalCameraComponent](cmd, eid) {
		c |= capPortal
	}
	if HasComponent[VisualCloneComponent](cmd, eid) {
		c |= capClone
	}
	w.caps[eid] = c
	return c
}

func (p *Portal) record(eid EntityId) (int, *trackedTraveller) {
	for i, rec := range p.tracked {
		if rec.entity == eid {
			return i, rec
		}
	}
	return -1, nil
}

// Tracked lists the travellers tracked by p in registration order.
func (p *Portal) Tracked() []EntityId {
	res := make([]EntityId, len(p.tracked))
	for i, rec := range p.tracked {
		res[i] = rec.entity
	}
	return res
}

// CloneOf returns the clone of a traveller tracked by p, if it has one.
func (p *Portal) CloneOf(eid EntityId) (*VisualClone, bool) {
	_, rec := p.record(eid)
	if rec == nil || rec.clone == nil {
		return nil, false
	}
	return rec.clone, true
}

// OnTravellerEnter registers eid with the portal. Entering a portal that
// already tracks eid is a no-op.
func (w *PortalWorld) OnTravellerEnter(cmd *Commands, portal, eid EntityId) error {
	p, err := w.portal(portal)
	if err != nil {
		return err
	}
	caps := w.capabilitiesOf(cmd, eid)
	if caps&(capPortal|capClone) != 0 {
		return nil
	}
	if caps&capTraveller == 0 {
		return fmt.Errorf("entity %d entering %s: %w", eid, p.name, ErrNotTraveller)
	}
	if owner, ok := w.owner[eid]; ok {
		if owner == p {
			return nil
		}
		return fmt.Errorf("entity %d entering %s, tracked by %s: %w", eid, p.name, owner.name, errOwnedElsewhere)
	}

	tr, ok := GetComponent[TransformComponent](cmd, eid)
	if !ok {
		return fmt.Errorf("entity %d has no transform: %w", eid, ErrMissingCapability)
	}
	portalPose, ok := p.pose(cmd)
	if !ok {
		return fmt.Errorf("portal %s has no transform: %w", p.name, ErrUnknownPortal)
	}

	rec := &trackedTraveller{
		entity:   eid,
		lastSide: core.SignedSide(tr.Position, portalPose),
	}
	p.tracked = append(p.tracked, rec)
	w.owner[eid] = p
	w.ensureClone(cmd, p, rec, tr.Pose())

	w.logger.Debugf("%s tracks entity %d (side %d)", p.DisplayName(), eid, rec.lastSide)
	return nil
}

// OnTravellerExit stops tracking eid without a crossing.
func (w *PortalWorld) OnTravellerExit(cmd *Commands, portal, eid EntityId) error {
	p, err := w.portal(portal)
	if err != nil {
		return err
	}
	caps := w.capabilitiesOf(cmd, eid)
	if caps&(capPortal|capClone) != 0 {
		return nil
	}
	if caps&capTraveller == 0 {
		return fmt.Errorf("entity %d leaving %s: %w", eid, p.name, ErrMissingCapability)
	}

	i, rec := p.record(eid)
	if rec == nil {
		w.logger.Debugf("%s: exit of entity %d that was never registered: %v", p.DisplayName(), eid, ErrMissingCapability)
		return nil
	}
	w.untrack(cmd, p, i)
	w.logger.Debugf("%s stopped tracking entity %d", p.DisplayName(), eid)
	return nil
}

// ForgetTraveller drops every trace of eid, e.g. before destroying it.
func (w *PortalWorld) ForgetTraveller(cmd *Commands, eid EntityId) {
	if p, ok := w.owner[eid]; ok {
		if i, rec := p.record(eid); rec != nil {
			w.untrack(cmd, p, i)
		}
	}
	for _, p := range w.order {
		delete(p.inside, eid)
	}
	delete(w.caps, eid)
}

func (w *PortalWorld) untrack(cmd *Commands, p *Portal, i int) {
	rec := p.tracked[i]
	w.dropRecord(cmd, rec)
	p.tracked = append(p.tracked[:i], p.tracked[i+1:]...)
	if w.owner[rec.entity] == p {
		delete(w.owner, rec.entity)
	}
}

func (w *PortalWorld) dropRecord(cmd *Commands, rec *trackedTraveller) {
	if rec.clone != nil {
		w.clones.Release(cmd, rec.clone)
		rec.clone = nil
	}
}

// ensureClone creates the clone a pre-crossing traveller needs, or releases
// one it must not have.
func (w *PortalWorld) ensureClone(cmd *Commands, p *Portal, rec *trackedTraveller, travellerPose core.Pose) {
	wantClone := p.linked != nil && !rec.arrived
	if !wantClone {
		if rec.clone != nil {
			w.clones.Release(cmd, rec.clone)
			rec.clone = nil
		}
		return
	}

	portalPose, ok := p.pose(cmd)
	if !ok {
		return
	}
	linkedPose, ok := p.linked.pose(cmd)
	if !ok {
		return
	}
	remapped := core.Remap(portalPose, linkedPose, travellerPose)
	if rec.clone == nil {
		rec.clone = w.clones.Create(cmd, rec.entity, remapped)
		return
	}
	w.clones.Reposition(cmd, rec.clone, remapped)
}

func (w *PortalWorld) syncClones(cmd *Commands, p *Portal) {
	for _, rec := range p.tracked {
		tr, ok := GetComponent[TransformComponent](cmd, rec.entity)
		if !ok {
			continue
		}
		w.ensureClone(cmd, p, rec, tr.Pose())
	}
}

// Tick re-evaluates every tracked traveller: clone first, then the crossing
// test. Portals run in ascending entity order, travellers back to front.
func (w *PortalWorld) Tick(cmd *Commands) {
	frame := cmd.fixedFrame()
	for _, p := range w.Portals() {
		if _, alive := w.portals[p.Entity]; !alive {
			continue
		}
		portalPose, ok := p.pose(cmd)
		if !ok {
			continue
		}

		for i := len(p.tracked) - 1; i >= 0; i-- {
			if i >= len(p.tracked) {
				continue
			}
			rec := p.tracked[i]

			tr, ok := GetComponent[TransformComponent](cmd, rec.entity)
			if !ok {
				w.logger.Debugf("%s dropping vanished entity %d", p.name, rec.entity)
				w.untrack(cmd, p, i)
				delete(p.inside, rec.entity)
				delete(w.caps, rec.entity)
				continue
			}

			w.ensureClone(cmd, p, rec, tr.Pose())

			side := core.SignedSide(tr.Position, portalPose)
			if side == rec.lastSide {
				continue
			}
			if p.linked == nil {
				w.logger.Debugf("%s: %v, entity %d changed side without teleport", p.name, ErrUnpairedPortal, rec.entity)
				rec.lastSide = side
				continue
			}
			w.cross(cmd, p, i, tr, portalPose, frame)
		}
	}
}

// cross teleports the traveller at index i of p and hands it to the linked
// portal in one step.
func (w *PortalWorld) cross(cmd *Commands, p *Portal, i int, tr *TransformComponent, portalPose core.Pose, frame uint64) {
	dst := p.linked
	linkedPose, ok := dst.pose(cmd)
	if !ok {
		return
	}
	rec := p.tracked[i]
	before := tr.Pose()
	after := core.Remap(portalPose, linkedPose, before)
	tr.SetPose(after)

	w.untrack(cmd, p, i)
	delete(p.inside, rec.entity)

	side := core.SignedSide(after.Position, linkedPose)
	if _, existing := dst.record(rec.entity); existing != nil {
		existing.lastSide = side
		existing.arrived = true
		w.dropRecord(cmd, existing)
	} else {
		dst.tracked = append(dst.tracked, &trackedTraveller{
			entity:   rec.entity,
			lastSide: side,
			arrived:  true,
		})
	}
	w.owner[rec.entity] = dst
	dst.inside[rec.entity] = struct{}{}

	event := CrossingEvent{
		Traveller:  rec.entity,
		From:       p.Entity,
		To:         dst.Entity,
		Before:     before,
		After:      after,
		FixedFrame: frame,
	}
	w.logger.Infof("entity %d crossed %s -> %s at fixed frame %d", rec.entity, p.name, dst.name, frame)
	for _, fn := range w.onCross {
		fn(event)
	}
}

func PortalTravelSystem(cmd *Commands, world *PortalWorld) {
	world.Tick(cmd)
}

func (cmd *Commands) fixedFrame() uint64 {
	if t := cmd.app.time(); t != nil {
		return t.FixedFrame
	}
	return 0
}
