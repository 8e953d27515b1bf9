package portals

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/gekko3d/portals/portalrt/core"
)

// walk moves the traveller along its own forward before each step.
func (f *portalFixture) walk(t *testing.T, eid EntityId, dist float32) {
	t.Helper()
	tr := f.transform(t, eid)
	tr.Position = tr.Position.Add(tr.Forward().Mul(dist))
}

// assertBookkeeping checks the tracking and clone invariants for one traveller.
func (f *portalFixture) assertBookkeeping(t *testing.T, eid EntityId) {
	t.Helper()
	assert.LessOrEqual(t, len(f.trackingPortals(eid)), 1, "traveller tracked by more than one portal")

	liveClones, cloneNodes := 0, 0
	for _, p := range f.world.Portals() {
		for _, rec := range p.tracked {
			wantClone := p.linked != nil && !rec.arrived
			assert.Equal(t, wantClone, rec.clone != nil, "portal %s entity %d clone state", p.name, rec.entity)
			if rec.clone != nil {
				liveClones++
				cloneNodes += len(rec.clone.Nodes)
			}
		}
	}
	assert.Equal(t, liveClones, f.world.Clones().Live())
	assert.Len(t, f.cloneEntities(), cloneNodes)
}

func TestCrossingRemapsAndHandsOff(t *testing.T) {
	f := newPortalFixture(t, nil)
	pa, pb := f.facingPair(t)
	trav := f.spawnTraveller(mgl32.Vec3{0, 0, -1.05}, mgl32.QuatIdent())

	var events []CrossingEvent
	f.world.OnCross(func(e CrossingEvent) { events = append(events, e) })

	sawClone := false
	for k := 1; k <= 10; k++ {
		f.walk(t, trav, 0.1)
		f.step()
		f.assertBookkeeping(t, trav)

		if clone, ok := pa.CloneOf(trav); ok {
			sawClone = true
			rootTr := f.transform(t, clone.Root)
			aPose, _ := pa.pose(f.cmd)
			bPose, _ := pb.pose(f.cmd)
			want := core.Remap(aPose, bPose, f.transform(t, trav).Pose())
			assert.True(t, rootTr.Pose().ApproxEqual(want, 1e-4, 1e-5), "clone pose %v, want %v", rootTr.Pose(), want)
		}
	}
	require.True(t, sawClone, "traveller approaching a linked portal should get a clone")
	require.Empty(t, events)
	owner, ok := f.world.TrackedBy(trav)
	require.True(t, ok)
	assert.Same(t, pa, owner)

	// The step that takes the traveller past the plane
	f.walk(t, trav, 0.1)
	f.step()
	f.assertBookkeeping(t, trav)

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, trav, ev.Traveller)
	assert.Equal(t, pa.Entity, ev.From)
	assert.Equal(t, pb.Entity, ev.To)
	assert.InDelta(t, 0.05, ev.Before.Position.Z(), 1e-4)

	tr := f.transform(t, trav)
	assert.InDelta(t, 10, tr.Position.X(), 1e-4)
	assert.InDelta(t, 0, tr.Position.Y(), 1e-4)
	assert.InDelta(t, -0.05, tr.Position.Z(), 1e-4)
	assert.InDelta(t, -1, tr.Forward().Z(), 1e-4, "traveller should now face away from B")
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, tr.Scale)

	owner, ok = f.world.TrackedBy(trav)
	require.True(t, ok)
	assert.Same(t, pb, owner)
	assert.Empty(t, pa.Tracked())
	assert.Equal(t, []EntityId{trav}, pb.Tracked())
	_, hasClone := pb.CloneOf(trav)
	assert.False(t, hasClone, "an arriving traveller gets no clone")
	assert.Empty(t, f.cloneEntities())

	// Walking on through B's trigger never crosses back.
	for k := 0; k < 20; k++ {
		f.walk(t, trav, 0.1)
		f.step()
		f.assertBookkeeping(t, trav)
	}
	assert.Len(t, events, 1)
	assert.Empty(t, pb.Tracked(), "traveller should have left B's trigger")
	_, ok = f.world.TrackedBy(trav)
	assert.False(t, ok)
}

func TestCrossingIsDeterministic(t *testing.T) {
	// Heading 20 degrees off A's normal, 0.07 per step: z = -1.05 + 0.0658k
	// first turns positive on step 16.
	type result struct {
		path       []mgl32.Vec3
		crossSteps []int
	}
	run := func() result {
		f := newPortalFixture(t, nil)
		f.facingPair(t)
		trav := f.spawnTraveller(mgl32.Vec3{0.3, 0.2, -1.05}, yawDeg(20))

		var res result
		step := 0
		f.world.OnCross(func(CrossingEvent) { res.crossSteps = append(res.crossSteps, step) })
		for step = 1; step <= 40; step++ {
			f.walk(t, trav, 0.07)
			f.step()
			f.assertBookkeeping(t, trav)
			res.path = append(res.path, f.transform(t, trav).Position)
		}
		return res
	}

	first := run()
	assert.Equal(t, []int{16}, first.crossSteps, "crossing fires once, on the first step past the plane")
	assert.InDelta(t, 10-0.683, first.path[15].X(), 1e-3)

	second := run()
	assert.Equal(t, first, second)
}

func TestRoundTripThroughBothPortals(t *testing.T) {
	f := newPortalFixture(t, nil)
	pa, pb := f.facingPair(t)
	trav := f.spawnTraveller(mgl32.Vec3{0, 0, -1.05}, mgl32.QuatIdent())

	var events []CrossingEvent
	f.world.OnCross(func(e CrossingEvent) { events = append(events, e) })

	for k := 0; k < 11; k++ {
		f.walk(t, trav, 0.1)
		f.step()
	}
	require.Len(t, events, 1)

	// Turn around and walk back through B.
	tr := f.transform(t, trav)
	tr.Rotation = mgl32.QuatIdent()
	for k := 0; k < 3; k++ {
		f.walk(t, trav, 0.1)
		f.step()
		f.assertBookkeeping(t, trav)
	}

	require.Len(t, events, 2)
	assert.Equal(t, pb.Entity, events[1].From)
	assert.Equal(t, pa.Entity, events[1].To)
	owner, _ := f.world.TrackedBy(trav)
	assert.Same(t, pa, owner)
	assert.Less(t, f.transform(t, trav).Position.Z(), float32(0))
}

func TestUnlinkedPortalIsInert(t *testing.T) {
	f := newPortalFixture(t, nil)
	a := f.world.SpawnPortal(f.cmd, PortalDef{Name: "Lonely", Rotation: mgl32.QuatIdent()})
	f.app.FlushCommands()
	pa, _ := f.world.Portal(a)
	trav := f.spawnTraveller(mgl32.Vec3{0, 0, -1.05}, mgl32.QuatIdent())

	crossed := 0
	f.world.OnCross(func(CrossingEvent) { crossed++ })

	for k := 0; k < 12; k++ {
		f.walk(t, trav, 0.1)
		f.step()
		f.assertBookkeeping(t, trav)
	}

	assert.Zero(t, crossed)
	assert.Empty(t, f.cloneEntities())
	assert.InDelta(t, 0.15, f.transform(t, trav).Position.Z(), 1e-4)
	assert.InDelta(t, 0, f.transform(t, trav).Position.X(), 1e-6)

	_, rec := pa.record(trav)
	require.NotNil(t, rec, "unlinked portals still track")
	assert.Equal(t, 1, rec.lastSide)
	assert.Equal(t, "Lonely (-> Unlinked)", pa.DisplayName())
}

func TestVanishedTravellerIsDropped(t *testing.T) {
	f := newPortalFixture(t, nil)
	pa, _ := f.facingPair(t)
	trav := f.spawnTraveller(mgl32.Vec3{0, 0, -0.3}, mgl32.QuatIdent())
	f.step()
	f.step()
	_, hasClone := pa.CloneOf(trav)
	require.True(t, hasClone)

	f.cmd.RemoveEntity(trav)
	f.app.FlushCommands()
	f.step()

	assert.Empty(t, pa.Tracked())
	assert.Empty(t, f.cloneEntities())
	assert.Zero(t, f.world.Clones().Live())
	_, tracked := f.world.TrackedBy(trav)
	assert.False(t, tracked)
	assert.NotContains(t, pa.inside, trav)
}

func TestForgetTraveller(t *testing.T) {
	f := newPortalFixture(t, nil)
	pa, _ := f.facingPair(t)
	trav := f.spawnTraveller(mgl32.Vec3{0, 0, -0.3}, mgl32.QuatIdent())
	f.step()
	f.step()
	require.Equal(t, []EntityId{trav}, pa.Tracked())

	f.world.ForgetTraveller(f.cmd, trav)
	f.app.FlushCommands()

	assert.Empty(t, pa.Tracked())
	assert.Empty(t, f.cloneEntities())
	assert.NotContains(t, f.world.caps, trav)

	// Still overlapping: the next trigger pass picks it up again.
	f.step()
	assert.Equal(t, []EntityId{trav}, pa.Tracked())
}

func TestEnterRefusedWhileTrackedElsewhereIsRetried(t *testing.T) {
	f := newPortalFixture(t, nil)
	a := f.world.SpawnPortal(f.cmd, PortalDef{Name: "A", Position: mgl32.Vec3{0, 0, 0}})
	c := f.world.SpawnPortal(f.cmd, PortalDef{Name: "C", Position: mgl32.Vec3{0, 0, 2}})
	f.app.FlushCommands()
	pa, _ := f.world.Portal(a)
	pc, _ := f.world.Portal(c)

	trav := f.spawnTraveller(mgl32.Vec3{0, 0, 1}, mgl32.QuatIdent())
	f.cmd.AddComponents(trav, ColliderComponent{HalfExtents: mgl32.Vec3{0.25, 0.25, 0.5}})
	f.app.FlushCommands()

	f.step()
	f.step()
	assert.Equal(t, []EntityId{trav}, pa.Tracked())
	assert.Empty(t, pc.Tracked())
	assert.NotContains(t, pc.inside, trav, "a refused enter is not remembered")
	f.assertBookkeeping(t, trav)

	// Leave A while still inside C: the same trigger pass hands it over.
	f.transform(t, trav).Position = mgl32.Vec3{0, 0, 2}
	f.step()
	assert.Empty(t, pa.Tracked())
	assert.Equal(t, []EntityId{trav}, pc.Tracked())
	f.assertBookkeeping(t, trav)
}

func TestTravellerEnterAndExitCapabilities(t *testing.T) {
	f := newPortalFixture(t, nil)
	f.app.Logger().SetDebug(true)
	pa, _ := f.facingPair(t)

	crate := f.cmd.AddEntity(
		NewTransform(mgl32.Vec3{0, 0, -5}, mgl32.QuatIdent()),
		ColliderComponent{HalfExtents: mgl32.Vec3{0.25, 0.25, 0.25}},
	)
	f.app.FlushCommands()

	assert.ErrorIs(t, f.world.OnTravellerEnter(f.cmd, pa.Entity, crate), ErrNotTraveller)
	assert.ErrorIs(t, f.world.OnTravellerExit(f.cmd, pa.Entity, crate), ErrMissingCapability)
	assert.ErrorIs(t, f.world.OnTravellerEnter(f.cmd, 9999, crate), ErrUnknownPortal)

	// Portals and clones are ignored without error
	assert.NoError(t, f.world.OnTravellerEnter(f.cmd, pa.Entity, pa.Linked().Entity))
	assert.NoError(t, f.world.OnTravellerExit(f.cmd, pa.Entity, pa.Camera))
	assert.Empty(t, pa.Tracked())

	// Entering twice tracks once
	trav := f.spawnTraveller(mgl32.Vec3{0, 0, -0.3}, mgl32.QuatIdent())
	require.NoError(t, f.world.OnTravellerEnter(f.cmd, pa.Entity, trav))
	require.NoError(t, f.world.OnTravellerEnter(f.cmd, pa.Entity, trav))
	assert.Equal(t, []EntityId{trav}, pa.Tracked())

	// Another portal is refused while A owns it
	err := f.world.OnTravellerEnter(f.cmd, pa.Linked().Entity, trav)
	assert.ErrorIs(t, err, errOwnedElsewhere)

	require.NoError(t, f.world.OnTravellerExit(f.cmd, pa.Entity, trav))
	assert.Empty(t, pa.Tracked())
	neverRegistered := func() int {
		return f.logs.FilterLevelExact(zapcore.DebugLevel).FilterMessageSnippet("never registered").Len()
	}
	before := neverRegistered()
	require.NoError(t, f.world.OnTravellerExit(f.cmd, pa.Entity, trav), "exit of an untracked traveller is a no-op")
	assert.Equal(t, before+1, neverRegistered(), "the stray exit is still reported")
	f.app.FlushCommands()
	assert.Empty(t, f.cloneEntities())
}

func TestNonTravellerInTriggerWarnsOnExit(t *testing.T) {
	f := newPortalFixture(t, nil)
	pa, _ := f.facingPair(t)

	crate := f.cmd.AddEntity(
		NewTransform(mgl32.Vec3{0, 0, -0.3}, mgl32.QuatIdent()),
		ColliderComponent{HalfExtents: mgl32.Vec3{0.25, 0.25, 0.25}},
	)
	f.app.FlushCommands()
	f.step()
	f.step()
	assert.Contains(t, pa.inside, crate)
	assert.Empty(t, pa.Tracked())

	f.transform(t, crate).Position = mgl32.Vec3{0, 0, -20}
	f.step()
	assert.NotContains(t, pa.inside, crate)

	warns := f.logs.FilterLevelExact(zapcore.WarnLevel).FilterMessageSnippet(ErrMissingCapability.Error()).All()
	assert.Len(t, warns, 1)
	assert.NotContains(t, f.world.caps, crate, "capabilities are forgotten once outside every trigger")
}
